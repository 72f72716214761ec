package main

import (
	"testing"

	"tiledswarm.ai/internal/sim/tuning"
)

func TestApplyOverrides_ZeroSeed(t *testing.T) {
	base := tuning.Defaults()
	base.Seed = 42

	got := applyOverrides(base, map[string]bool{"seed": true}, 0, 0, 0)
	if got.Seed != 0 {
		t.Fatalf("explicit -seed 0 ignored: seed=%d", got.Seed)
	}

	got = applyOverrides(base, map[string]bool{}, 0, 0, 0)
	if got.Seed != 42 {
		t.Fatalf("unset -seed changed config seed: %d", got.Seed)
	}
	if got.Episodes != base.Episodes || got.Parallel != base.Parallel {
		t.Fatalf("zero counts overrode config: %+v", got)
	}

	got = applyOverrides(base, map[string]bool{"seed": true, "episodes": true}, 7, 3, 2)
	if got.Seed != 7 || got.Episodes != 3 || got.Parallel != 2 {
		t.Fatalf("overrides not applied: seed=%d episodes=%d parallel=%d", got.Seed, got.Episodes, got.Parallel)
	}
}
