package gamification

// Badge describes an achievement a user can hold.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

const (
	BadgeFirstSprout  = "first_sprout"
	BadgeTreeGuardian = "tree_guardian"
	BadgeTopPerformer = "top_performer"
)

// Catalog holds every known badge keyed by id.
var Catalog = map[string]Badge{
	BadgeFirstSprout:  {ID: BadgeFirstSprout, Name: "First Sprout", Icon: "🌱", Description: "Planted your first tree"},
	BadgeTreeGuardian: {ID: BadgeTreeGuardian, Name: "Tree Guardian", Icon: "🌳", Description: "Verified 10 updates"},
	BadgeTopPerformer: {ID: BadgeTopPerformer, Name: "Top Performer", Icon: "🏆", Description: "Reached top 10% of leaderboard"},
}

// BadgeRule grants BadgeID the first time Earned reports true. Earned sees
// the score after points and level have been applied.
type BadgeRule struct {
	BadgeID string
	Earned  func(kind EventKind, score Score) bool
}

// DefaultBadgeRules only covers first_sprout; tree_guardian and
// top_performer are catalog entries without a trigger yet.
func DefaultBadgeRules() []BadgeRule {
	return []BadgeRule{
		{
			BadgeID: BadgeFirstSprout,
			Earned: func(kind EventKind, _ Score) bool {
				return kind == EventRegisterTree
			},
		},
	}
}
