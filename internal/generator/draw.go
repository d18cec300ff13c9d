package generator

import (
	"github.com/cespare/xxhash/v2"
)

const (
	saltVendor    = "vendor"
	saltTierPfx   = "tier_"
	saltJitterSfx = ":jitter"
	saltBias      = "bias"
	saltPick      = "pick"
	saltPickAny   = "pick_any"
	saltSentiment = "sentiment"
	saltCause     = "cause"
	saltShuffle   = "shuffle"
	saltShuffleTo = "shuffle_target"

	keySep = "\x1f"
)

// Draw maps (seed, identity, salt) to a uniformly distributed 64-bit value.
// It is a pure function: the same arguments always produce the same value.
func Draw(seed, identity, salt string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(seed)
	_, _ = d.WriteString(keySep)
	_, _ = d.WriteString(identity)
	_, _ = d.WriteString(keySep)
	_, _ = d.WriteString(salt)
	return d.Sum64()
}

// Percentile reduces a draw to an integer in [0, 100).
func Percentile(seed, identity, salt string) int {
	return int(Draw(seed, identity, salt) % 100)
}

// Fraction reduces a draw to a value in [0, 1) with the given resolution.
func Fraction(seed, identity, salt string, resolution uint64) float64 {
	if resolution == 0 {
		resolution = DefaultResolution
	}
	return float64(Draw(seed, identity, salt)%resolution) / float64(resolution)
}

// pick selects an index in [0, n) for identity. n must be positive.
func pick(seed, identity, salt string, n int) int {
	return int(Draw(seed, identity, salt) % uint64(n))
}
