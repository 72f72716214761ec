package protocol

// Agent roles carried on observations.
const (
	RoleSwarm     = "SWARM"
	RoleMalicious = "MALICIOUS"
)

// ObsMsg is what a controller sees of one agent before a tick is applied.
//
// Navigation is [object, motion, position] for swarm agents and
// [object, position] for malicious agents. The remaining state vectors are
// only filled for swarm agents.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`
	Role            string `json:"role"`

	Navigation   []int `json:"navigation"`
	FrontBlocked bool  `json:"front_blocked"`
	Heading      int   `json:"heading"`

	Sensing       bool    `json:"sensing,omitempty"`
	Committed     bool    `json:"committed,omitempty"`
	CanCommit     bool    `json:"can_commit,omitempty"`
	ObservedRatio float64 `json:"observed_ratio,omitempty"`

	// [num_white_observed, num_observed]
	SenseState [2]float64 `json:"sense_state"`
	// [num_white_observed, num_observed, collective, cells_visited]
	CommitState [4]float64 `json:"commit_state"`
	// [collective, white_ratio]
	WeightState [2]float64 `json:"weight_state"`
}

// ActMsg is one agent's decision for a tick. A nil Move leaves the agent
// idle. Malicious agents may only move; any other field is rejected.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	AgentID         string `json:"agent_id"`

	Move    *int        `json:"move,omitempty"`
	Sense   *bool       `json:"sense,omitempty"`
	Commit  bool        `json:"commit,omitempty"`
	Weights *[2]float64 `json:"weights,omitempty"`
}

// NewAct returns an empty ACT for agentID at tick.
func NewAct(tick uint64, agentID string) ActMsg {
	return ActMsg{Type: TypeAct, ProtocolVersion: Version, Tick: tick, AgentID: agentID}
}

func (a *ActMsg) SetMove(code int) { a.Move = &code }

func (a *ActMsg) SetSense(sense bool) { a.Sense = &sense }

func (a *ActMsg) SetWeights(w [2]float64) { a.Weights = &w }
