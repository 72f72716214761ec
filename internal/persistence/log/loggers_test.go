package log

import (
	"encoding/json"
	"testing"

	"tiledswarm.ai/internal/protocol"
	"tiledswarm.ai/internal/sim/episode"
)

func TestTickLogger_WriteRead(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	act := protocol.NewAct(0, "SWARM@0")
	act.SetMove(0)
	for tick := uint64(0); tick < 5; tick++ {
		e := episode.TickLogEntry{
			Tick:    tick,
			Actions: []episode.RecordedAction{{AgentID: act.AgentID, Act: act}},
			Digest:  "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		}
		if tick == 4 {
			e.Rejected = []episode.RejectedAction{{AgentID: "SWARM@9", Code: protocol.ErrUnknownAgent}}
			e.Done, e.Reason = true, episode.EndMaxSteps
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []episode.TickLogEntry
	if err := ReadAllTicks(dir, func(e episode.TickLogEntry) error {
		b, _ := json.Marshal(e)
		if err := protocol.ValidateTick(b); err != nil {
			t.Fatalf("tick %d: %v", e.Tick, err)
		}
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d entries want 5", len(got))
	}
	if *got[0].Actions[0].Act.Move != 0 || !got[4].Done || got[4].Rejected[0].Code != protocol.ErrUnknownAgent {
		t.Fatalf("entries changed: %+v", got)
	}

	n := 0
	if err := ReadAllTicks(dir, func(episode.TickLogEntry) error {
		n++
		if n == 2 {
			return ErrStop
		}
		return nil
	}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if n != 2 {
		t.Fatalf("ErrStop did not stop: n=%d", n)
	}
}

func TestReadAllTicks_Empty(t *testing.T) {
	if err := ReadAllTicks(t.TempDir(), func(episode.TickLogEntry) error { return nil }); err == nil {
		t.Fatalf("expected error for missing events")
	}
}

func TestJSONLZstdWriter_Segments(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(EventsDir(dir), "events", 2)
	for tick := uint64(0); tick < 5; tick++ {
		if err := w.Write(episode.TickLogEntry{Tick: tick}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := ListEventFiles(EventsDir(dir))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d segments want 3: %v", len(files), files)
	}
	var ticks []uint64
	if err := ReadAllTicks(dir, func(e episode.TickLogEntry) error {
		ticks = append(ticks, e.Tick)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, tick := range ticks {
		if tick != uint64(i) {
			t.Fatalf("ticks out of order: %v", ticks)
		}
	}
}

func TestValidateTicks(t *testing.T) {
	const digest = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	dir := t.TempDir()
	w := NewJSONLZstdWriter(EventsDir(dir), "events", 2)
	for tick := uint64(0); tick < 4; tick++ {
		if err := w.Write(episode.TickLogEntry{Tick: tick, Digest: digest}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	n, err := ValidateTicks(dir)
	if err != nil || n != 4 {
		t.Fatalf("clean log: n=%d err=%v", n, err)
	}

	bad := t.TempDir()
	w = NewJSONLZstdWriter(EventsDir(bad), "events", 2)
	for tick := uint64(0); tick < 4; tick++ {
		e := episode.TickLogEntry{Tick: tick, Digest: digest}
		if tick == 2 {
			e.Digest = "nothex"
		}
		if err := w.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	n, err = ValidateTicks(bad)
	if err == nil {
		t.Fatalf("expected schema error for bad digest")
	}
	if n != 2 {
		t.Fatalf("validated %d lines before the bad one, want 2", n)
	}

	if _, err := ValidateTicks(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing events")
	}
}
