package evaluate

import "math"

// Weighting measures how far the equation weights sit from the ideal
// (full weight on the correct opinion, none on the wrong one) and how far
// collective opinions sit from the correct opinion, averaged over ticks.
type Weighting struct {
	MaxWeight float64

	distanceSum   float64
	collectiveSum float64
	ticks         int
}

func (w *Weighting) Record(_, after Frame) {
	if len(after.Agents) == 0 {
		return
	}
	var dist, coll float64
	for _, a := range after.Agents {
		dist += (w.MaxWeight - a.WeightCorrect) + a.WeightIncorrect
		coll += math.Abs(float64(after.Correct) - a.Collective)
	}
	n := float64(len(after.Agents))
	w.distanceSum += dist / n
	w.collectiveSum += coll / n
	w.ticks++
}

func (w *Weighting) DistanceFromOptimal() float64 {
	if w.ticks == 0 {
		return 0
	}
	return w.distanceSum / float64(w.ticks)
}

func (w *Weighting) CollectiveError() float64 {
	if w.ticks == 0 {
		return 0
	}
	return w.collectiveSum / float64(w.ticks)
}
