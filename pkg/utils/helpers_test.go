package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	// Kolkata city center to Salt Lake is roughly 7km.
	dist := Haversine(22.5726, 88.3639, 22.5867, 88.4171)
	require.InDelta(t, 5.7, dist, 1.0, "Kolkata to Salt Lake should be a few km")

	require.Zero(t, Haversine(22.5726, 88.3639, 22.5726, 88.3639), "identical points should be zero distance")
}

func TestClamp(t *testing.T) {
	require.Equal(t, 0.0, Clamp(-1, 0, 10))
	require.Equal(t, 10.0, Clamp(15, 0, 10))
	require.Equal(t, 5.0, Clamp(5, 0, 10))
}

func TestRoundTo(t *testing.T) {
	require.Equal(t, 3.14, RoundTo(3.14159, 2))
	require.Equal(t, 7.8, RoundTo(7.849, 1))
}

func TestFalloff(t *testing.T) {
	require.Equal(t, 1.0, Falloff(1, 0, 1.5), "zero distance keeps full intensity")
	require.Equal(t, 0.0, Falloff(1, 1.5, 1.5), "intensity reaches zero at the radius")
	require.Equal(t, 0.0, Falloff(1, 3, 1.5), "beyond the radius clamps to zero, never negative")
	require.InDelta(t, 0.5, Falloff(1, 0.75, 1.5), 1e-9)
	require.Equal(t, 0.0, Falloff(1, 1, 0), "non-positive radius yields zero")
}
