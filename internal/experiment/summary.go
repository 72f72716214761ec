package experiment

import "sort"

// Summary aggregates a batch.
type Summary struct {
	Episodes         int            `json:"episodes"`
	Reasons          map[string]int `json:"reasons"`
	MeanTicks        float64        `json:"mean_ticks"`
	MeanCorrectRatio float64        `json:"mean_correct_committed_ratio"`
	MeanAccuracy     float64        `json:"mean_broadcast_accuracy"`
	MeanCellsPerMin  float64        `json:"mean_cells_per_minute"`
	Rejected         int            `json:"rejected"`
}

func Summarize(results []Result) Summary {
	s := Summary{Reasons: map[string]int{}}
	for _, r := range results {
		if r.EpisodeID == "" {
			continue
		}
		s.Episodes++
		s.Reasons[r.Reason]++
		s.MeanTicks += float64(r.Ticks)
		s.MeanCorrectRatio += r.Report.CorrectCommitted
		s.MeanAccuracy += r.Report.BroadcastAccuracy
		s.MeanCellsPerMin += r.Report.CellsPerMinute
		s.Rejected += r.Rejected
	}
	if s.Episodes > 0 {
		n := float64(s.Episodes)
		s.MeanTicks /= n
		s.MeanCorrectRatio /= n
		s.MeanAccuracy /= n
		s.MeanCellsPerMin /= n
	}
	return s
}

// ReasonKeys returns the end reasons in a stable order.
func (s Summary) ReasonKeys() []string {
	out := make([]string, 0, len(s.Reasons))
	for k := range s.Reasons {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
