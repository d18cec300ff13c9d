package generator

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraw(t *testing.T) {
	a := Draw("seed", "42", "vendor")
	assert.Equal(t, a, Draw("seed", "42", "vendor"))
	assert.NotEqual(t, a, Draw("seed", "42", "tier_ericsson"))
	assert.NotEqual(t, a, Draw("seed", "43", "vendor"))
	assert.NotEqual(t, a, Draw("other", "42", "vendor"))

	// The separator keeps adjacent fields from bleeding into each other.
	assert.NotEqual(t, Draw("s", "ab", "c"), Draw("s", "a", "bc"))
}

func TestPercentileAndFraction(t *testing.T) {
	var buckets [10]int
	const n = 20000
	for i := 0; i < n; i++ {
		id := strconv.Itoa(i)
		p := Percentile("seed", id, "x")
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 100)

		f := Fraction("seed", id, "y", DefaultResolution)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
		buckets[int(f*10)]++
	}
	for i, c := range buckets {
		assert.InDelta(t, n/10, c, n/10*0.1, "bucket %d", i)
	}

	assert.Equal(t, Fraction("s", "i", "x", 0), Fraction("s", "i", "x", DefaultResolution))
}

func TestPick(t *testing.T) {
	for i := 0; i < 1000; i++ {
		k := pick("seed", strconv.Itoa(i), saltPick, 7)
		assert.GreaterOrEqual(t, k, 0)
		assert.Less(t, k, 7)
	}
}
