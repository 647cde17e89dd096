package critique

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp_BoundsToZeroFiveRange(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-3, 0},
		{0, 0},
		{2.5, 2.5},
		{5, 5},
		{7.2, 5},
	}
	for _, c := range cases {
		require.Equal(t, c.want, clamp(c.in))
	}
}

func TestClamp_TotalIsSumOfClampedDimensions(t *testing.T) {
	completeness := clamp(6)
	accuracy := clamp(-1)
	relevance := clamp(3)
	clarity := clamp(4.5)

	total := completeness + accuracy + relevance + clarity
	require.Equal(t, 12.5, total)
}
