package gamification

import (
	"errors"
	"fmt"
)

type EventKind string

const (
	EventRegisterTree EventKind = "REGISTER_TREE"
	EventCreatePost   EventKind = "CREATE_POST"
	EventVerifiedPost EventKind = "VERIFIED_POST"
	EventLikeReceived EventKind = "LIKE_RECEIVED"
)

const DefaultBaseXP = 100

var ErrUnknownEvent = errors.New("unknown scoring event")

// Score is the mutable score state of a single user.
type Score struct {
	Points int
	XP     int
	Level  int
	Badges []string
}

// Outcome is the result of applying one event to a Score.
type Outcome struct {
	Score     Score
	Amount    int
	LeveledUp bool
	NewBadges []string
}

// Policy maps scoring events to points and decides level-ups and badges.
type Policy struct {
	Points     map[EventKind]int
	BaseXP     int
	BadgeRules []BadgeRule
}

func DefaultPoints() map[EventKind]int {
	return map[EventKind]int{
		EventRegisterTree: 20,
		EventCreatePost:   5,
		EventVerifiedPost: 10,
		EventLikeReceived: 1,
	}
}

func DefaultPolicy() *Policy {
	return &Policy{
		Points:     DefaultPoints(),
		BaseXP:     DefaultBaseXP,
		BadgeRules: DefaultBadgeRules(),
	}
}

func (p *Policy) Validate() error {
	if p.BaseXP <= 0 {
		return fmt.Errorf("base xp must be positive, got %d", p.BaseXP)
	}
	for _, kind := range Events() {
		amount, ok := p.Points[kind]
		if !ok {
			return fmt.Errorf("no point value for %s", kind)
		}
		if amount < 0 {
			return fmt.Errorf("point value for %s must not be negative, got %d", kind, amount)
		}
	}
	return nil
}

// Events lists the scoring events in a stable order.
func Events() []EventKind {
	return []EventKind{EventRegisterTree, EventCreatePost, EventVerifiedPost, EventLikeReceived}
}

func ParseEventKind(s string) (EventKind, error) {
	for _, kind := range Events() {
		if string(kind) == s {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
}

// PointsFor returns the points awarded for kind.
func (p *Policy) PointsFor(kind EventKind) (int, error) {
	amount, ok := p.Points[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
	}
	return amount, nil
}

// RequiredXP is the xp needed to advance past level.
func (p *Policy) RequiredXP(level int) int {
	return level * p.BaseXP
}

// Apply computes the new score after one event. At most one level is gained
// per event: an award that crosses several thresholds leaves xp at or above
// the next requirement until the following award.
func (p *Policy) Apply(current Score, kind EventKind) (Outcome, error) {
	amount, err := p.PointsFor(kind)
	if err != nil {
		return Outcome{}, err
	}

	next := Score{
		Points: current.Points + amount,
		XP:     current.XP + amount,
		Level:  current.Level,
		Badges: append([]string(nil), current.Badges...),
	}
	if next.Level < 1 {
		next.Level = 1
	}

	out := Outcome{Amount: amount}

	required := p.RequiredXP(next.Level)
	if next.XP >= required {
		next.Level++
		next.XP -= required
		out.LeveledUp = true
	}

	for _, rule := range p.BadgeRules {
		if hasBadge(next.Badges, rule.BadgeID) {
			continue
		}
		if rule.Earned(kind, next) {
			next.Badges = append(next.Badges, rule.BadgeID)
			out.NewBadges = append(out.NewBadges, rule.BadgeID)
		}
	}
	out.Score = next
	return out, nil
}

func hasBadge(badges []string, id string) bool {
	for _, b := range badges {
		if b == id {
			return true
		}
	}
	return false
}
