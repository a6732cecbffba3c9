package relay

import "fmt"

// Sizing maps a boundary index to the capacity, in bytes, of its buffer.
type Sizing func(index int) int

// Geometric returns the default sizing for a chain of the given length:
// base^(stages-index+offset), capped at max. Front boundaries get the
// largest buffers.
func Geometric(stages, base, offset, max int) Sizing {
	return func(index int) int {
		exp := stages - index + offset
		size := 1
		for i := 0; i < exp; i++ {
			size *= base
			if size >= max {
				return max
			}
		}
		return size
	}
}

// Capacities evaluates s for every boundary of an n-stage chain, clamps
// each value to [min, max] and enforces that capacity never grows with the
// boundary index.
func Capacities(s Sizing, n, min, max int) ([]int, error) {
	if n < 1 {
		return nil, fmt.Errorf("stage count %d: must be at least 1", n)
	}
	if min < 1 || max < min {
		return nil, fmt.Errorf("buffer bounds [%d, %d]: invalid", min, max)
	}

	caps := make([]int, n)
	for i := range caps {
		c := s(i)
		if c < min {
			c = min
		}
		if c > max {
			c = max
		}
		if i > 0 && c > caps[i-1] {
			c = caps[i-1]
		}
		caps[i] = c
	}
	return caps, nil
}
