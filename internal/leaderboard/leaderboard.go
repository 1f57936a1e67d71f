package leaderboard

type LeaderboardEntry struct {
	UserID            string `json:"user_id"`
	Name              string `json:"name"`
	PhotoURL          string `json:"photo_url,omitempty"`
	Points            int    `json:"points"`
	Level             int    `json:"level"`
	Rank              int    `json:"rank"`
	IsCommunityLeader bool   `json:"is_community_leader"`
}

type Leaderboard struct {
	CommunityID string              `json:"community_id,omitempty"`
	Entries     []*LeaderboardEntry `json:"entries"`
}
