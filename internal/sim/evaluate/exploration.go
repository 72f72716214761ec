package evaluate

// Exploration tracks distinct cells visited per agent, checkpointed every
// TicksPerMinute ticks.
type Exploration struct {
	PerMinute   []float64 `json:"per_minute"`
	lastVisited []int
	lastFrame   Frame
}

func (e *Exploration) Record(before, after Frame) {
	if e.lastVisited == nil {
		e.lastVisited = visitedCounts(before)
	}
	e.lastFrame = after
	if after.Tick == 0 || after.Tick%TicksPerMinute != 0 || len(after.Agents) == 0 {
		return
	}
	sum := 0
	for i, a := range after.Agents {
		prev := 0
		if i < len(e.lastVisited) {
			prev = e.lastVisited[i]
		}
		sum += a.Visited - prev
	}
	e.PerMinute = append(e.PerMinute, float64(sum)/float64(len(after.Agents)))
	e.lastVisited = visitedCounts(after)
}

// CellsPerMinute is the mean of the per-minute checkpoints.
func (e *Exploration) CellsPerMinute() float64 {
	if len(e.PerMinute) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range e.PerMinute {
		total += v
	}
	return total / float64(len(e.PerMinute))
}

// AverageVisited is the mean visited-set size at the last recorded frame.
func (e *Exploration) AverageVisited() float64 {
	if len(e.lastFrame.Agents) == 0 {
		return 0
	}
	sum := 0
	for _, a := range e.lastFrame.Agents {
		sum += a.Visited
	}
	return float64(sum) / float64(len(e.lastFrame.Agents))
}

func visitedCounts(f Frame) []int {
	out := make([]int, len(f.Agents))
	for i, a := range f.Agents {
		out[i] = a.Visited
	}
	return out
}
