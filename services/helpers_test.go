package services

import (
	"sync"

	"greenTrackAPI/internal/docstore/memory"
	"greenTrackAPI/internal/user"
)

type recordingScheduler struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingScheduler) Schedule(communityID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, communityID)
}

func (r *recordingScheduler) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func seedUser(s *memory.Store, id, communityID string, points int) {
	s.PutUser(&user.User{
		ID:          id,
		Name:        "User " + id,
		Level:       1,
		Points:      points,
		CommunityID: communityID,
	})
}
