package episode_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"tiledswarm.ai/internal/persistence/snapshot"
	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/episode"
	"tiledswarm.ai/internal/sim/grid"
	"tiledswarm.ai/internal/sim/tuning"
)

// smallCfg is a 3x3 clustered grid (6 white tiles) with one swarm agent
// at (0,0) and one malicious agent at (1,0), both facing RIGHT.
func smallCfg() tuning.Experiment {
	cfg := tuning.Defaults()
	cfg.Width, cfg.Height = 3, 3
	cfg.Clustered = true
	cfg.RatioOfWhiteToBlackTiles = 0.7
	cfg.NumAgents = 1
	cfg.NumMaliciousAgents = 1
	return cfg
}

func newWorld(t *testing.T, cfg tuning.Experiment) *episode.World {
	t.Helper()
	w, err := episode.New("test", cfg)
	if err != nil {
		t.Fatalf("episode.New: %v", err)
	}
	return w
}

func act(w *episode.World, label string) protocol.ActMsg {
	return protocol.NewAct(w.CurrentTick(), label)
}

func moveAct(w *episode.World, label string, code int) protocol.ActMsg {
	a := act(w, label)
	a.SetMove(code)
	return a
}

func step(t *testing.T, w *episode.World, acts ...protocol.ActMsg) episode.TickLogEntry {
	t.Helper()
	e, err := w.StepOnce(acts)
	if err != nil {
		t.Fatalf("step %d: %v", w.CurrentTick(), err)
	}
	return e
}

func hasCode(e episode.TickLogEntry, code string) bool {
	for _, r := range e.Rejected {
		if r.Code == code {
			return true
		}
	}
	return false
}

// randomActs draws one ACT per agent from r: a move and, for swarm agents,
// occasional sense/commit/weight decisions.
func randomActs(w *episode.World, r *rand.Rand) []protocol.ActMsg {
	var out []protocol.ActMsg
	for _, obs := range w.ObserveAll() {
		a := moveAct(w, obs.AgentID, r.IntN(3))
		if obs.Role == protocol.RoleSwarm && obs.CanCommit {
			a.SetSense(r.IntN(2) == 0)
			a.SetWeights([2]float64{r.Float64() * 0.2, r.Float64() * 0.2})
			a.Commit = r.IntN(40) == 0
		}
		out = append(out, a)
	}
	return out
}

func TestNew_PlacementAndOpinions(t *testing.T) {
	cfg := smallCfg()
	cfg.NumAgents = 3
	cfg.NumMaliciousAgents = 2
	w := newWorld(t, cfg)

	if w.CorrectOpinion() != 1 || w.MaliciousOpinion() != 0 {
		t.Fatalf("opinions: correct=%d malicious=%d", w.CorrectOpinion(), w.MaliciousOpinion())
	}
	want := []grid.Coord{{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 2, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 1}}
	for i, m := range w.Swarm().Members() {
		if got := w.Grid().At(want[i]).Occupant(); got != m.ID() {
			t.Fatalf("member %d: tile %v holds %d", i, want[i], got)
		}
	}
	if len(w.Swarm().Agents()) != 3 || len(w.Swarm().Malicious()) != 2 {
		t.Fatalf("arena split wrong")
	}
	labels := w.Labels()
	if labels[0] != "SWARM@0" || labels[3] != "MALICIOUS@3" {
		t.Fatalf("labels: %v", labels)
	}
	for _, a := range w.Swarm().Agents() {
		if a.Heading() != grid.Right || a.NumCellsObserved() != 1 {
			t.Fatalf("agent %d: heading=%v observed=%d", a.ID(), a.Heading(), a.NumCellsObserved())
		}
	}
}

func TestNew_RandomHeadingIsSeeded(t *testing.T) {
	cfg := smallCfg()
	cfg.RandomInitialHeading = true
	cfg.NumAgents = 4
	a, b := newWorld(t, cfg), newWorld(t, cfg)
	for i, m := range a.Swarm().Agents() {
		if m.Heading() != b.Swarm().Agents()[i].Heading() {
			t.Fatalf("agent %d heading differs across same-seed worlds", i)
		}
	}
}

func TestDeterminism_SameActionsSameDigest(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.Width, cfg.Height = 8, 6
	cfg.NumAgents = 6
	cfg.NumMaliciousAgents = 2
	cfg.SensingNoise = 0.1
	cfg.CommunicationNoise = 0.1
	cfg.OpinionWeightingMethod = "list_of_weights"
	cfg.MaxSteps = 200

	w1, w2 := newWorld(t, cfg), newWorld(t, cfg)
	if w1.StateDigest() != w2.StateDigest() {
		t.Fatalf("initial digests differ")
	}
	r := rand.New(rand.NewPCG(5, 6))
	for {
		acts := randomActs(w1, r)
		e1 := step(t, w1, acts...)
		e2 := step(t, w2, acts...)
		if e1.Digest != e2.Digest {
			t.Fatalf("digest mismatch at tick %d", e1.Tick)
		}
		if e1.Done {
			break
		}
	}

	w3 := newWorld(t, cfg.WithSeed(cfg.Seed+1))
	if w3.StateDigest() == newWorld(t, cfg).StateDigest() {
		t.Fatalf("different seeds produced the same initial state")
	}
}

func TestSnapshot_RoundTripDigest(t *testing.T) {
	cfg := tuning.Defaults()
	cfg.Width, cfg.Height = 7, 5
	cfg.NumAgents = 5
	cfg.NumMaliciousAgents = 1
	cfg.SensingNoise = 0.2
	cfg.MaxSteps = 100

	w := newWorld(t, cfg)
	r := rand.New(rand.NewPCG(9, 9))
	for i := 0; i < 25; i++ {
		if done, _ := w.Done(); done {
			break
		}
		step(t, w, randomActs(w, r)...)
	}
	snap, err := w.ExportSnapshot()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	path := snapshot.PathFor(t.TempDir(), snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	w2, err := episode.FromSnapshot(loaded)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if w2.CurrentTick() != w.CurrentTick() {
		t.Fatalf("tick after import: got %d want %d", w2.CurrentTick(), w.CurrentTick())
	}
	if w.StateDigest() != w2.StateDigest() {
		t.Fatalf("digest mismatch after import")
	}

	// Both copies must keep agreeing, noise draws included.
	for i := 0; i < 25; i++ {
		if done, _ := w.Done(); done {
			break
		}
		acts := randomActs(w, r)
		e1 := step(t, w, acts...)
		e2 := step(t, w2, acts...)
		if e1.Digest != e2.Digest {
			t.Fatalf("digest mismatch %d ticks after import", i+1)
		}
	}
}

func TestStep_MaliciousMovesFirst(t *testing.T) {
	w := newWorld(t, smallCfg())
	sa := w.Swarm().Agents()[0]
	sa.SetHeading(grid.Down) // towards the malicious agent at (1,0)

	e := step(t, w, moveAct(w, "SWARM@0", 0), moveAct(w, "MALICIOUS@1", 0))
	if len(e.Rejected) != 0 {
		t.Fatalf("unexpected rejections: %+v", e.Rejected)
	}
	if c, _ := sa.CurrentCell(); c != (grid.Coord{Row: 1, Col: 0}) {
		t.Fatalf("swarm agent at %v, want (1,0) vacated by the malicious agent", c)
	}
	if c, _ := w.Swarm().Malicious()[0].CurrentCell(); c != (grid.Coord{Row: 1, Col: 1}) {
		t.Fatalf("malicious agent at %v", c)
	}
}

func TestStep_CommitGating(t *testing.T) {
	w := newWorld(t, smallCfg())
	sa := w.Swarm().Agents()[0]

	commit := act(w, "SWARM@0")
	commit.Commit = true
	commit.SetMove(0)
	e := step(t, w, commit)
	if !hasCode(e, protocol.ErrCommitEarly) || sa.Committed() {
		t.Fatalf("early commit not rejected: %+v", e.Rejected)
	}

	// (0,1) -> (0,2), turn down, (1,2): four observed cells of nine.
	step(t, w, moveAct(w, "SWARM@0", 0))
	step(t, w, moveAct(w, "SWARM@0", 2))
	step(t, w, moveAct(w, "SWARM@0", 0))
	if sa.NumCellsObserved() != 4 {
		t.Fatalf("observed=%d want 4", sa.NumCellsObserved())
	}
	obs, err := w.Observe(sa.ID())
	if err != nil || !obs.CanCommit {
		t.Fatalf("expected commit to be allowed: %+v %v", obs, err)
	}

	commit = act(w, "SWARM@0")
	commit.Commit = true
	commit.SetSense(true)
	e = step(t, w, commit)
	if len(e.Rejected) != 0 || !sa.Committed() || sa.Sensing() {
		t.Fatalf("commit not applied: committed=%v sensing=%v rejected=%+v", sa.Committed(), sa.Sensing(), e.Rejected)
	}
	if !e.Done || e.Reason != episode.EndAllCommitted {
		t.Fatalf("expected all_committed termination, got %+v", e)
	}
	if _, err := w.StepOnce(nil); !errors.Is(err, episode.ErrEpisodeDone) {
		t.Fatalf("expected ErrEpisodeDone, got %v", err)
	}
}

func TestStep_GatedAgentOnlyNavigates(t *testing.T) {
	// The swarm agent at (0,0) has seen 1 of 9 cells and neighbours the
	// malicious agent at (1,0).
	w := newWorld(t, smallCfg())
	sa := w.Swarm().Agents()[0]
	if w.CanCommit(sa) {
		t.Fatalf("agent should start below the observation gate")
	}
	step(t, w)
	if got := sa.CollectiveOpinion(); got != 0.5 {
		t.Fatalf("gated agent took in opinions: collective=%v", got)
	}

	cfg := smallCfg()
	cfg.CommitMinObservedRatio = 0.01
	w = newWorld(t, cfg)
	sa = w.Swarm().Agents()[0]
	step(t, w)
	// Fixed weight 0.1 towards the malicious opinion 0.
	if got := sa.CollectiveOpinion(); math.Abs(got-0.45) > 1e-12 {
		t.Fatalf("collective=%v want 0.45", got)
	}
}

func TestStep_BadWeightsRejectWholeDecision(t *testing.T) {
	cfg := smallCfg()
	cfg.CommitMinObservedRatio = 0.01
	w := newWorld(t, cfg)
	sa := w.Swarm().Agents()[0]
	weightsBefore := sa.OpinionWeights()

	a := act(w, "SWARM@0")
	a.SetSense(false)
	a.Commit = true
	a.SetWeights([2]float64{2, 0})
	e := step(t, w, a)
	if !hasCode(e, protocol.ErrBadWeights) {
		t.Fatalf("expected %s, got %+v", protocol.ErrBadWeights, e.Rejected)
	}
	if sa.Committed() || !sa.Sensing() || sa.OpinionWeights() != weightsBefore {
		t.Fatalf("rejected decision changed the agent: committed=%v sensing=%v weights=%v",
			sa.Committed(), sa.Sensing(), sa.OpinionWeights())
	}
	if e.Done {
		t.Fatalf("episode must not end on a rejected commit")
	}
}

func TestStep_MaxSteps(t *testing.T) {
	cfg := smallCfg()
	cfg.MaxSteps = 5
	w := newWorld(t, cfg)
	var e episode.TickLogEntry
	for i := 0; i < 5; i++ {
		e = step(t, w)
	}
	if done, reason := w.Done(); !done || reason != episode.EndMaxSteps || !e.Done {
		t.Fatalf("done=%v reason=%q", done, reason)
	}
	if w.CurrentTick() != 5 {
		t.Fatalf("tick=%d", w.CurrentTick())
	}
}

func TestStep_Rejections(t *testing.T) {
	w := newWorld(t, smallCfg())

	stale := moveAct(w, "SWARM@0", 0)
	stale.Tick = 9
	bad := moveAct(w, "MALICIOUS@1", 7)
	mislabelled := moveAct(w, "MALICIOUS@0", 0)
	sense := act(w, "MALICIOUS@1")
	sense.SetSense(true)
	before := w.StateDigest()

	e := step(t, w, stale, bad, mislabelled, moveAct(w, "SWARM@42", 0))
	for _, code := range []string{protocol.ErrStale, protocol.ErrBadAction, protocol.ErrUnknownAgent} {
		if !hasCode(e, code) {
			t.Fatalf("missing %s in %+v", code, e.Rejected)
		}
	}
	if len(e.Actions) != 4 {
		t.Fatalf("every submitted act must be recorded, got %d", len(e.Actions))
	}
	if before == e.Digest {
		t.Fatalf("tick must still advance")
	}

	e = step(t, w, moveAct(w, "SWARM@0", 1), moveAct(w, "SWARM@0", 0), sense)
	if !hasCode(e, protocol.ErrProtoBadRequest) || !hasCode(e, protocol.ErrNotAllowed) {
		t.Fatalf("expected duplicate and not-allowed rejections: %+v", e.Rejected)
	}
	if w.Swarm().Agents()[0].Heading() != grid.Up {
		t.Fatalf("first act should win: heading=%v", w.Swarm().Agents()[0].Heading())
	}
}

func TestObserve_Vectors(t *testing.T) {
	w := newWorld(t, smallCfg())
	obs := w.ObserveAll()
	if len(obs) != 2 {
		t.Fatalf("obs count %d", len(obs))
	}
	s := obs[0]
	// (0,0) facing RIGHT: corner, escaping, top wall on the left.
	if s.Role != protocol.RoleSwarm || len(s.Navigation) != 3 || s.Navigation[0] != 2 || s.Navigation[1] != 1 || s.Navigation[2] != 1 {
		t.Fatalf("swarm navigation %v", s.Navigation)
	}
	if s.SenseState != [2]float64{1, 1} || s.CommitState[2] != 0.5 || s.WeightState != [2]float64{0.5, 1} {
		t.Fatalf("swarm state vectors %+v", s)
	}
	if !s.Sensing || s.CanCommit || s.FrontBlocked {
		t.Fatalf("swarm flags %+v", s)
	}
	m := obs[1]
	// (1,0) facing RIGHT: single LEFT wall behind.
	if m.Role != protocol.RoleMalicious || len(m.Navigation) != 2 || m.Navigation[0] != 1 || m.Navigation[1] != 2 {
		t.Fatalf("malicious navigation %v", m.Navigation)
	}
}
