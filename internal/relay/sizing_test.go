package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometric(t *testing.T) {
	const max = 128*1024 - 1

	tests := []struct {
		name   string
		stages int
		index  int
		want   int
	}{
		{"last of one", 1, 0, 243},
		{"first of two", 2, 0, 729},
		{"last of two", 2, 1, 243},
		{"first of four", 4, 0, 6561},
		{"capped", 8, 0, max},
		{"huge exponent stays capped", 1000, 0, max},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Geometric(tt.stages, 3, 4, max)(tt.index))
		})
	}
}

func TestCapacities(t *testing.T) {
	caps, err := Capacities(Geometric(3, 3, 4, 1000), 3, 64, 1000)
	require.NoError(t, err)
	assert.Equal(t, []int{1000, 729, 243}, caps)

	// a growing policy is forced to be non-increasing
	growing := func(i int) int { return 100 * (i + 1) }
	caps, err = Capacities(growing, 4, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 100, 100}, caps)

	// floor applies
	zero := func(int) int { return 0 }
	caps, err = Capacities(zero, 2, 16, 1000)
	require.NoError(t, err)
	assert.Equal(t, []int{16, 16}, caps)
}

func TestCapacitiesRejectsBadBounds(t *testing.T) {
	s := Geometric(1, 3, 4, 100)

	_, err := Capacities(s, 0, 1, 100)
	assert.Error(t, err)
	_, err = Capacities(s, 1, 0, 100)
	assert.Error(t, err)
	_, err = Capacities(s, 1, 50, 10)
	assert.Error(t, err)
}
