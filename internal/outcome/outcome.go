// Package outcome holds the death-move rules: rolling, classifying and the
// odds shown to players before they choose. Nothing here performs I/O
// besides drawing dice through the supplied Roller.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lox/deathmoves/internal/assets"
	"github.com/lox/deathmoves/internal/dice"
)

// DieSides is the size of every die in a death move.
const DieSides = 12

// Outcome is the result category of a resolved branch.
type Outcome int

const (
	Unknown Outcome = iota
	AvoidScar
	AvoidSafe
	Hope
	Fear
	Critical
	Blaze
)

var outcomeNames = map[Outcome]string{
	AvoidScar: "avoid_scar",
	AvoidSafe: "avoid_safe",
	Hope:      "hope",
	Fear:      "fear",
	Critical:  "critical",
	Blaze:     "blaze",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Media returns the full-screen image shown for the outcome.
func (o Outcome) Media() assets.Media {
	switch o {
	case AvoidScar:
		return assets.MediaAvoidScar
	case AvoidSafe:
		return assets.MediaAvoidSafe
	case Hope:
		return assets.MediaHope
	case Fear:
		return assets.MediaFear
	case Critical:
		return assets.MediaCritical
	case Blaze:
		return assets.MediaBlaze
	default:
		return ""
	}
}

// Sound returns the result sound for the outcome.
func (o Outcome) Sound() assets.Sound {
	switch o {
	case AvoidScar:
		return assets.SoundAvoidScar
	case AvoidSafe:
		return assets.SoundAvoidSafe
	case Hope:
		return assets.SoundHope
	case Fear:
		return assets.SoundFear
	case Critical:
		return assets.SoundCritical
	case Blaze:
		return assets.SoundBlaze
	default:
		return ""
	}
}

// Branch returns the branch that produces the outcome.
func (o Outcome) Branch() Branch {
	switch o {
	case AvoidScar, AvoidSafe:
		return BranchAvoid
	case Hope, Fear, Critical:
		return BranchRisk
	case Blaze:
		return BranchBlaze
	default:
		return ""
	}
}

// Branch is one of the three death moves a participant can choose.
type Branch string

const (
	BranchAvoid Branch = "avoid"
	BranchBlaze Branch = "blaze"
	BranchRisk  Branch = "risk"
)

// ErrUnknownBranch is returned by ParseBranch.
var ErrUnknownBranch = errors.New("unknown death move")

// Branches lists the branches in display order.
func Branches() []Branch {
	return []Branch{BranchAvoid, BranchBlaze, BranchRisk}
}

// ParseBranch accepts a branch name ("risk") or its button id ("btn-risk").
func ParseBranch(value string) (Branch, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.TrimPrefix(v, "btn-")
	switch Branch(v) {
	case BranchAvoid, BranchBlaze, BranchRisk:
		return Branch(v), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBranch, value)
}

// ButtonID is the id of the option element for the branch.
func (b Branch) ButtonID() string {
	return "btn-" + string(b)
}

// AnnouncementSound is played when the branch is announced.
func (b Branch) AnnouncementSound() assets.Sound {
	switch b {
	case BranchAvoid:
		return assets.SoundAnnounceAvoid
	case BranchBlaze:
		return assets.SoundAnnounceBlaze
	case BranchRisk:
		return assets.SoundAnnounceRisk
	default:
		return ""
	}
}

// Valid reports whether b is a known branch.
func (b Branch) Valid() bool {
	switch b {
	case BranchAvoid, BranchBlaze, BranchRisk:
		return true
	}
	return false
}

// Character is the part of a player character the rules look at.
type Character struct {
	Name  string
	Level int
	Items []string
}

// HasItem reports whether the character carries an item with the exact name.
// A nil character has no items.
func (c *Character) HasItem(name string) bool {
	if c == nil || name == "" {
		return false
	}
	for _, item := range c.Items {
		if item == name {
			return true
		}
	}
	return false
}

// Roller draws dice for an expression.
type Roller interface {
	Roll(ctx context.Context, expr string) (dice.Result, error)
}

// ScarThreshold is the highest raw d12 face that still gives a scar. It is
// the single rule shared by the pre-roll odds and the post-roll
// classification: total = raw + bonus <= level exactly when raw <= threshold.
func ScarThreshold(level int, hasBonus bool) int {
	t := level - bonusOf(hasBonus)
	return max(0, min(DieSides, t))
}

// ClassifyAvoid classifies a raw d12 face.
func ClassifyAvoid(raw, level int, hasBonus bool) Outcome {
	if raw <= ScarThreshold(level, hasBonus) {
		return AvoidScar
	}
	return AvoidSafe
}

func bonusOf(hasBonus bool) int {
	if hasBonus {
		return 1
	}
	return 0
}

// AvoidRoll is the result of an Avoid Death roll.
type AvoidRoll struct {
	Raw       int
	Bonus     int
	Total     int
	Level     int
	Threshold int
	Outcome   Outcome
	Dice      dice.Result
}

// AvoidExpression is the expression rolled for Avoid Death.
func AvoidExpression(hasBonus bool) string {
	if hasBonus {
		return "1d12 + 1"
	}
	return "1d12"
}

// RollAvoidDeath rolls a d12, adds the bonus item's +1 and classifies the
// total against level. Roller failures are returned as is.
func RollAvoidDeath(ctx context.Context, roller Roller, level int, hasBonus bool) (AvoidRoll, error) {
	res, err := roller.Roll(ctx, AvoidExpression(hasBonus))
	if err != nil {
		return AvoidRoll{}, fmt.Errorf("roll avoid death: %w", err)
	}
	raw, err := singleD12(res, 0)
	if err != nil {
		return AvoidRoll{}, err
	}
	bonus := bonusOf(hasBonus)
	return AvoidRoll{
		Raw:       raw,
		Bonus:     bonus,
		Total:     raw + bonus,
		Level:     level,
		Threshold: ScarThreshold(level, hasBonus),
		Outcome:   ClassifyAvoid(raw, level, hasBonus),
		Dice:      res,
	}, nil
}

// RollD12 draws a single d12.
func RollD12(ctx context.Context, roller Roller) (int, dice.Result, error) {
	res, err := roller.Roll(ctx, "1d12")
	if err != nil {
		return 0, dice.Result{}, fmt.Errorf("roll d12: %w", err)
	}
	face, err := singleD12(res, 0)
	if err != nil {
		return 0, dice.Result{}, err
	}
	return face, res, nil
}

func singleD12(res dice.Result, term int) (int, error) {
	if len(res.Terms) <= term || len(res.Terms[term].Results) != 1 {
		return 0, fmt.Errorf("roll %q: missing d12 term %d", res.Expression, term)
	}
	face := res.Terms[term].Results[0]
	if face < 1 || face > DieSides {
		return 0, fmt.Errorf("roll %q: d12 face %d out of range", res.Expression, face)
	}
	return face, nil
}

// ClassifyRisk compares the Hope die with the Fear die.
func ClassifyRisk(hope, fear int) Outcome {
	switch {
	case hope > fear:
		return Hope
	case fear > hope:
		return Fear
	default:
		return Critical
	}
}

// RiskRoll is the result of a Risk It All roll.
type RiskRoll struct {
	Hope    int
	Fear    int
	Outcome Outcome
}

// NewRiskRoll classifies two already drawn dice.
func NewRiskRoll(hope, fear int) RiskRoll {
	return RiskRoll{Hope: hope, Fear: fear, Outcome: ClassifyRisk(hope, fear)}
}

// RiskExpression is rolled for a simultaneous Risk It All. The first term is
// the Hope die and the second the Fear die.
const RiskExpression = "1d12 + 1d12"

// RollRiskItAll draws the Hope and Fear dice together.
func RollRiskItAll(ctx context.Context, roller Roller) (RiskRoll, dice.Result, error) {
	res, err := roller.Roll(ctx, RiskExpression)
	if err != nil {
		return RiskRoll{}, dice.Result{}, fmt.Errorf("roll risk it all: %w", err)
	}
	hope, err := singleD12(res, 0)
	if err != nil {
		return RiskRoll{}, dice.Result{}, err
	}
	fear, err := singleD12(res, 1)
	if err != nil {
		return RiskRoll{}, dice.Result{}, err
	}
	return NewRiskRoll(hope, fear), res, nil
}
