package evaluate

import "math"

// Commitment records when each swarm agent committed and, at the end,
// whether its committed opinion is the correct one.
type Commitment struct {
	commitTick []int64 // -1 until committed
	last       Frame
}

func (c *Commitment) Record(before, after Frame) {
	if c.commitTick == nil {
		c.commitTick = make([]int64, len(after.Agents))
		for i := range c.commitTick {
			c.commitTick[i] = -1
		}
	}
	for i, a := range after.Agents {
		if i < len(c.commitTick) && a.Committed && c.commitTick[i] < 0 {
			c.commitTick[i] = int64(after.Tick)
		}
	}
	c.last = after
}

func (c *Commitment) Committed() int {
	n := 0
	for _, t := range c.commitTick {
		if t >= 0 {
			n++
		}
	}
	return n
}

// CorrectRatio is the share of all swarm agents that committed to the
// correct opinion.
func (c *Commitment) CorrectRatio() float64 {
	if len(c.last.Agents) == 0 {
		return 0
	}
	n := 0
	for _, a := range c.last.Agents {
		if a.Committed && int(math.RoundToEven(a.Collective)) == c.last.Correct {
			n++
		}
	}
	return float64(n) / float64(len(c.last.Agents))
}

// FirstCommitTick is the earliest commitment, or -1 if none happened.
func (c *Commitment) FirstCommitTick() int64 {
	first := int64(-1)
	for _, t := range c.commitTick {
		if t >= 0 && (first < 0 || t < first) {
			first = t
		}
	}
	return first
}

// MinutesToCommit averages the commit time of the agents that committed.
func (c *Commitment) MinutesToCommit() float64 {
	sum, n := 0.0, 0
	for _, t := range c.commitTick {
		if t >= 0 {
			sum += float64(t)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / TicksPerMinute
}
