package user

import (
	"time"

	"greenTrackAPI/internal/community"
	"greenTrackAPI/internal/gamification"
)

type User struct {
	ID                string                `json:"id" firestore:"-"`
	Name              string                `json:"name" firestore:"name"`
	Email             string                `json:"email" firestore:"email"`
	PhotoURL          string                `json:"photoURL,omitempty" firestore:"photoURL"`
	Points            int                   `json:"points" firestore:"points"`
	XP                int                   `json:"xp" firestore:"xp"`
	Level             int                   `json:"level" firestore:"level"`
	Badges            []string              `json:"badges" firestore:"badges"`
	CommunityID       string                `json:"communityId" firestore:"communityId"`
	CommunityName     string                `json:"communityName" firestore:"communityName"`
	IsCommunityLeader bool                  `json:"isCommunityLeader" firestore:"isCommunityLeader"`
	LastLocation      *community.Coordinate `json:"lastLocation,omitempty" firestore:"lastLocation"`
	CreatedAt         time.Time             `json:"createdAt" firestore:"createdAt"`
}

// New returns a user with all score counters zeroed, as created on first sign-in.
func New(id, name, email, photoURL string, c community.Community, loc *community.Coordinate, now time.Time) *User {
	if name == "" {
		name = "Anonymous"
	}
	return &User{
		ID:            id,
		Name:          name,
		Email:         email,
		PhotoURL:      photoURL,
		Level:         1,
		Badges:        []string{},
		CommunityID:   c.ID,
		CommunityName: c.Name,
		LastLocation:  loc,
		CreatedAt:     now,
	}
}

func (u *User) Score() gamification.Score {
	return gamification.Score{
		Points: u.Points,
		XP:     u.XP,
		Level:  u.Level,
		Badges: u.Badges,
	}
}
