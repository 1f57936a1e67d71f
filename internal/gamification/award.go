package gamification

// AwardResult reports the committed score state after one award. Skipped is
// set when the user record does not exist and nothing was written.
type AwardResult struct {
	UserID      string    `json:"userId"`
	Kind        EventKind `json:"kind"`
	Amount      int       `json:"amount"`
	Points      int       `json:"points"`
	XP          int       `json:"xp"`
	Level       int       `json:"level"`
	LeveledUp   bool      `json:"leveledUp"`
	NewBadges   []string  `json:"newBadges,omitempty"`
	CommunityID string    `json:"communityId,omitempty"`
	Skipped     bool      `json:"skipped,omitempty"`
}
