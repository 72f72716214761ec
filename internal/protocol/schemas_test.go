package protocol_test

import (
	"encoding/json"
	"testing"

	"tiledswarm.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Tick:            3,
		AgentID:         "SWARM@0",
		Role:            protocol.RoleSwarm,
		Navigation:      []int{1, 0, 0},
		FrontBlocked:    true,
		Heading:         1,
		Sensing:         true,
		ObservedRatio:   0.04,
		SenseState:      [2]float64{5, 9},
		CommitState:     [4]float64{5, 9, 0.5, 9},
		WeightState:     [2]float64{0.5, 0.55},
	}
	b, _ := json.Marshal(obs)
	if err := protocol.ValidateObs(b); err != nil {
		t.Fatalf("obs: %v", err)
	}

	act := protocol.NewAct(3, "SWARM@0")
	act.SetMove(2)
	act.SetSense(false)
	act.SetWeights([2]float64{0.1, 0.2})
	b, _ = json.Marshal(act)
	if err := protocol.ValidateAct(b); err != nil {
		t.Fatalf("act: %v", err)
	}

	tick := `{
	  "tick": 3,
	  "digest": "` + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" + `",
	  "actions": [{"agent_id":"SWARM@0","act":` + string(b) + `}],
	  "rejected": [{"agent_id":"SWARM@1","code":"E_COMMIT_EARLY","message":"observed too little"}]
	}`
	if err := protocol.ValidateTick([]byte(tick)); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func TestSchemas_RejectBadMessages(t *testing.T) {
	if err := protocol.ValidateAct([]byte(`{"type":"ACT","protocol_version":"1.0","tick":0,"agent_id":"SWARM@0","jump":true}`)); err == nil {
		t.Fatalf("expected unknown act field rejected")
	}
	if err := protocol.ValidateObs([]byte(`{"type":"OBS","protocol_version":"1.0","tick":0,"agent_id":"BOT@1","role":"SWARM","navigation":[0,0,0],"front_blocked":false,"heading":0}`)); err == nil {
		t.Fatalf("expected bad agent id rejected")
	}
	if err := protocol.ValidateTick([]byte(`{"tick":1,"digest":"nothex"}`)); err == nil {
		t.Fatalf("expected bad digest rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, _ := json.Marshal(protocol.NewAct(0, "MALICIOUS@4"))
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if base.Type != protocol.TypeAct || base.ProtocolVersion != protocol.Version {
		t.Fatalf("unexpected base: %+v", base)
	}
}
