package relay

// BoundaryStats summarizes one boundary after (or during) a run.
type BoundaryStats struct {
	Index        int    `json:"index"`
	Capacity     int    `json:"capacity"`
	State        string `json:"state"`
	BytesStaged  int64  `json:"bytes_staged"`
	BytesFlushed int64  `json:"bytes_flushed"`
	Cycles       int64  `json:"cycles"`
	HighWater    int    `json:"high_water"`
}

// Stats summarizes a coordinator run.
type Stats struct {
	Boundaries   []BoundaryStats `json:"boundaries"`
	BytesEmitted int64           `json:"bytes_emitted"`
	Waits        int64           `json:"waits"`
}

// Stats returns per-boundary counters. For every boundary BytesStaged
// equals BytesFlushed once it has drained.
func (c *Coordinator) Stats() Stats {
	s := Stats{
		Boundaries:   make([]BoundaryStats, len(c.boundaries)),
		BytesEmitted: c.emitted,
		Waits:        c.waits,
	}
	for i, b := range c.boundaries {
		buf := b.Buffer
		s.Boundaries[i] = BoundaryStats{
			Index:        b.Index,
			Capacity:     buf.Capacity(),
			State:        b.state.String(),
			BytesStaged:  buf.totalStaged,
			BytesFlushed: buf.totalFlushed,
			Cycles:       buf.cycles,
			HighWater:    buf.highWater,
		}
	}
	return s
}
