package evaluate

// Report is the per-episode metric set stored with the episode row.
type Report struct {
	Ticks  uint64 `json:"ticks"`
	Reason string `json:"reason,omitempty"`

	Broadcast         Broadcast `json:"broadcast"`
	BroadcastAccuracy float64   `json:"broadcast_accuracy"`

	CellsPerMinute float64   `json:"cells_per_minute"`
	PerMinute      []float64 `json:"per_minute,omitempty"`
	AverageVisited float64   `json:"average_visited"`

	Committed        int     `json:"committed"`
	CorrectCommitted float64 `json:"correct_committed_ratio"`
	FirstCommitTick  int64   `json:"first_commit_tick"`
	MinutesToCommit  float64 `json:"minutes_to_commit"`
	WeightDistance   float64 `json:"weight_distance_from_optimal"`
	CollectiveError  float64 `json:"collective_error"`
}

// Suite runs every evaluator over the same frames.
type Suite struct {
	broadcast   Broadcast
	exploration Exploration
	commitment  Commitment
	weighting   Weighting
	lastTick    uint64
}

func NewSuite(maxWeight float64) *Suite {
	return &Suite{weighting: Weighting{MaxWeight: maxWeight}}
}

func (s *Suite) Record(before, after Frame) {
	s.broadcast.Record(before, after)
	s.exploration.Record(before, after)
	s.commitment.Record(before, after)
	s.weighting.Record(before, after)
	s.lastTick = after.Tick
}

func (s *Suite) Report(reason string) Report {
	return Report{
		Ticks:             s.lastTick,
		Reason:            reason,
		Broadcast:         s.broadcast,
		BroadcastAccuracy: s.broadcast.Accuracy(),
		CellsPerMinute:    s.exploration.CellsPerMinute(),
		PerMinute:         append([]float64(nil), s.exploration.PerMinute...),
		AverageVisited:    s.exploration.AverageVisited(),
		Committed:         s.commitment.Committed(),
		CorrectCommitted:  s.commitment.CorrectRatio(),
		FirstCommitTick:   s.commitment.FirstCommitTick(),
		MinutesToCommit:   s.commitment.MinutesToCommit(),
		WeightDistance:    s.weighting.DistanceFromOptimal(),
		CollectiveError:   s.weighting.CollectiveError(),
	}
}
