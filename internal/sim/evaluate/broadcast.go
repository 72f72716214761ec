package evaluate

// Broadcast scores each sense/broadcast decision against the agent's own
// opinion before the tick. Broadcasting is the positive class: broadcasting
// a correct opinion is a true positive, sensing on with a wrong one a true
// negative.
type Broadcast struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

func (b *Broadcast) Record(before, after Frame) {
	for i, pre := range before.Agents {
		if i >= len(after.Agents) || !pre.HasOpinion || pre.Committed {
			continue
		}
		post := after.Agents[i]
		if post.Committed {
			continue
		}
		correct := pre.Opinion == before.Correct
		switch {
		case !post.Sensing && correct:
			b.TP++
		case !post.Sensing:
			b.FP++
		case !correct:
			b.TN++
		default:
			b.FN++
		}
	}
}

func (b Broadcast) Total() int { return b.TP + b.FP + b.TN + b.FN }

func (b Broadcast) Accuracy() float64 {
	if b.Total() == 0 {
		return 0
	}
	return float64(b.TP+b.TN) / float64(b.Total())
}
