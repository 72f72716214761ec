package ids

import (
	"fmt"
	"strconv"
	"strings"
)

// Agent kinds used in labels.
const (
	KindSwarm     = "SWARM"
	KindMalicious = "MALICIOUS"
)

// AgentLabel formats the wire id of the agent at arena index idx.
func AgentLabel(kind string, idx int) string {
	return fmt.Sprintf("%s@%d", kind, idx)
}

func ParseAgentLabel(id string) (kind string, idx int, ok bool) {
	parts := strings.SplitN(id, "@", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	switch parts[0] {
	case KindSwarm, KindMalicious:
	default:
		return "", 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return parts[0], n, true
}

// EpisodeID names episode i of a run.
func EpisodeID(runID string, i int) string {
	return fmt.Sprintf("%s-ep%04d", runID, i)
}
