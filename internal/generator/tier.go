package generator

import (
	"fmt"
	"strings"
)

// Tier is a tower performance tier. Lower values are better.
type Tier int

const (
	TierGood Tier = iota
	TierProblematic
	TierQuiteBad
	TierBad
	TierVeryBad
	TierCatastrophic
)

var tierNames = [...]string{
	TierGood:         "GOOD",
	TierProblematic:  "PROBLEMATIC",
	TierQuiteBad:     "QUITE_BAD",
	TierBad:          "BAD",
	TierVeryBad:      "VERY_BAD",
	TierCatastrophic: "CATASTROPHIC",
}

// AllTiers lists every tier from best to worst.
func AllTiers() []Tier {
	return []Tier{TierGood, TierProblematic, TierQuiteBad, TierBad, TierVeryBad, TierCatastrophic}
}

// WorstTiers returns the n worst tiers, worst first.
func WorstTiers(n int) []Tier {
	all := AllTiers()
	if n > len(all) {
		n = len(all)
	}
	out := make([]Tier, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out
}

func (t Tier) String() string {
	if t < TierGood || t > TierCatastrophic {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t >= TierGood && t <= TierCatastrophic
}

// Worse reports whether t ranks below other.
func (t Tier) Worse(other Tier) bool {
	return t > other
}

// ParseTier accepts the upper-case tier names, case-insensitively.
func ParseTier(s string) (Tier, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
