package outcome

import "math"

// Risk It All odds over the 144 equally likely (hope, fear) pairs. Both
// modes draw the same two independent dice, so the odds do not depend on
// whether the dice are revealed one at a time.
const (
	RiskPairs        = DieSides * DieSides
	RiskCriticalWays = DieSides
	RiskHopeWays     = (RiskPairs - RiskCriticalWays) / 2
	RiskFearWays     = RiskHopeWays

	// A Hope or Critical result keeps the character alive.
	RiskLifePercent  = 54
	RiskDeathPercent = 100 - RiskLifePercent

	BlazeDeathPercent = 100
)

// AvoidScarPercent is the chance, rounded to a whole percent, that Avoid
// Death leaves a scar.
func AvoidScarPercent(level int, hasBonus bool) int {
	return int(math.Round(float64(ScarThreshold(level, hasBonus)) / DieSides * 100))
}

// ProbabilitySnapshot is computed once by the initiator and carried in the
// fan-out messages so every client shows the same numbers.
type ProbabilitySnapshot struct {
	AvoidScarPercent  int    `json:"avoidScarPercent"`
	AvoidKnown        bool   `json:"avoidKnown"`
	RiskLifePercent   int    `json:"riskLifePercent"`
	RiskDeathPercent  int    `json:"riskDeathPercent"`
	BlazeDeathPercent int    `json:"blazeDeathPercent"`
	HasBonusItem      bool   `json:"hasBonusItem"`
	BonusItemName     string `json:"bonusItemName,omitempty"`
}

// Snapshot computes the odds for actor. It returns nil when the odds are
// hidden. A nil actor yields an unknown Avoid Death chance.
func Snapshot(actor *Character, show bool, bonusItemName string) *ProbabilitySnapshot {
	if !show {
		return nil
	}
	snap := &ProbabilitySnapshot{
		RiskLifePercent:   RiskLifePercent,
		RiskDeathPercent:  RiskDeathPercent,
		BlazeDeathPercent: BlazeDeathPercent,
	}
	if actor == nil {
		return snap
	}
	hasBonus := actor.HasItem(bonusItemName)
	snap.AvoidKnown = true
	snap.AvoidScarPercent = AvoidScarPercent(actor.Level, hasBonus)
	snap.HasBonusItem = hasBonus
	if hasBonus {
		snap.BonusItemName = bonusItemName
	}
	return snap
}

// Clone returns a copy, or nil for a nil snapshot.
func (s *ProbabilitySnapshot) Clone() *ProbabilitySnapshot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
