package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tiledswarm.ai/internal/sim/grid"
	"tiledswarm.ai/internal/sim/swarm"
)

// Experiment is the immutable configuration of a batch of episodes.
type Experiment struct {
	Seed int64 `yaml:"seed" json:"seed"`

	Width                      int     `yaml:"width" json:"width"`
	Height                     int     `yaml:"height" json:"height"`
	RatioOfWhiteToBlackTiles   float64 `yaml:"ratio_of_white_to_black_tiles" json:"ratio_of_white_to_black_tiles"`
	Clustered                  bool    `yaml:"clustered" json:"clustered"`
	InitialObservationsHelpful bool    `yaml:"initial_observations_helpful" json:"initial_observations_helpful"`

	NumAgents          int `yaml:"num_agents" json:"num_agents"`
	NumMaliciousAgents int `yaml:"num_malicious_agents" json:"num_malicious_agents"`

	CommunicationRange     int     `yaml:"communication_range" json:"communication_range"`
	SensingNoise           float64 `yaml:"sensing_noise" json:"sensing_noise"`
	CommunicationNoise     float64 `yaml:"communication_noise" json:"communication_noise"`
	MaxNewOpinionWeighting float64 `yaml:"max_new_opinion_weighting" json:"max_new_opinion_weighting"`
	OpinionWeightingMethod string  `yaml:"opinion_weighting_method" json:"opinion_weighting_method"`

	MaxSteps             int    `yaml:"max_steps" json:"max_steps"`
	InitialHeading       string `yaml:"initial_heading" json:"initial_heading"`
	RandomInitialHeading bool   `yaml:"random_initial_heading" json:"random_initial_heading"`

	// Commitment is only allowed once an agent has sensed more than this
	// share of the grid. Zero means 1/height.
	CommitMinObservedRatio float64 `yaml:"commit_min_observed_ratio" json:"commit_min_observed_ratio"`
	CommitThresholdLow     float64 `yaml:"commit_threshold_low" json:"commit_threshold_low"`
	CommitThresholdHigh    float64 `yaml:"commit_threshold_high" json:"commit_threshold_high"`
	SenseProbability       float64 `yaml:"sense_probability" json:"sense_probability"`

	Episodes           int `yaml:"episodes" json:"episodes"`
	Parallel           int `yaml:"parallel" json:"parallel"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`
}

func Defaults() Experiment {
	return Experiment{
		Seed:                       1337,
		Width:                      15,
		Height:                     15,
		RatioOfWhiteToBlackTiles:   0.7,
		Clustered:                  false,
		InitialObservationsHelpful: true,
		NumAgents:                  15,
		NumMaliciousAgents:         0,
		CommunicationRange:         swarm.DefaultCommunicationRange,
		MaxNewOpinionWeighting:     swarm.DefaultMaxNewOpinionWeighting,
		OpinionWeightingMethod:     string(swarm.WeightingFixed),
		MaxSteps:                   3000,
		InitialHeading:             "RIGHT",
		CommitThresholdLow:         0.05,
		CommitThresholdHigh:        0.95,
		SenseProbability:           0.5,
		Episodes:                   1,
		Parallel:                   1,
		SnapshotEveryTicks:         500,
	}
}

// Load reads an experiment file over Defaults. An empty path yields the
// normalized defaults.
func Load(path string) (Experiment, error) {
	e := Defaults()
	if strings.TrimSpace(path) == "" {
		e.Normalize()
		return e, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return e, err
	}
	if err := ValidateDocument(raw); err != nil {
		return e, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("%s: %w", path, err)
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

func (e *Experiment) Normalize() {
	e.InitialHeading = strings.ToUpper(strings.TrimSpace(e.InitialHeading))
	if e.InitialHeading == "" {
		e.InitialHeading = "RIGHT"
	}
	e.OpinionWeightingMethod = strings.ToLower(strings.TrimSpace(e.OpinionWeightingMethod))
	if e.OpinionWeightingMethod == "" {
		e.OpinionWeightingMethod = string(swarm.WeightingFixed)
	}
	if e.CommitMinObservedRatio == 0 && e.Height > 0 {
		e.CommitMinObservedRatio = 1 / float64(e.Height)
	}
	if e.Episodes <= 0 {
		e.Episodes = 1
	}
	if e.Parallel <= 0 {
		e.Parallel = 1
	}
}

func (e Experiment) Validate() error {
	if err := e.GridParams().Validate(); err != nil {
		return err
	}
	if err := e.AgentConfig().Validate(); err != nil {
		return err
	}
	if e.NumAgents < 1 {
		return fmt.Errorf("num_agents must be >= 1")
	}
	if e.NumMaliciousAgents < 0 {
		return fmt.Errorf("num_malicious_agents must be >= 0")
	}
	if n := e.NumAgents + e.NumMaliciousAgents; n > e.Width*e.Height {
		return fmt.Errorf("%d agents do not fit a %dx%d grid", n, e.Width, e.Height)
	}
	if e.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be >= 1")
	}
	if _, ok := ParseHeading(e.InitialHeading); !ok {
		return fmt.Errorf("unknown initial_heading %q", e.InitialHeading)
	}
	if e.CommitMinObservedRatio < 0 || e.CommitMinObservedRatio > 1 {
		return fmt.Errorf("commit_min_observed_ratio %v outside [0,1]", e.CommitMinObservedRatio)
	}
	if e.CommitThresholdLow < 0 || e.CommitThresholdHigh > 1 || e.CommitThresholdLow >= e.CommitThresholdHigh {
		return fmt.Errorf("commit thresholds need 0 <= low < high <= 1, got %v/%v", e.CommitThresholdLow, e.CommitThresholdHigh)
	}
	if e.SenseProbability < 0 || e.SenseProbability > 1 {
		return fmt.Errorf("sense_probability %v outside [0,1]", e.SenseProbability)
	}
	if e.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	return nil
}

func (e Experiment) GridParams() grid.Params {
	return grid.Params{
		Width:      e.Width,
		Height:     e.Height,
		WhiteRatio: e.RatioOfWhiteToBlackTiles,
		Clustered:  e.Clustered,
		Helpful:    e.InitialObservationsHelpful,
	}
}

func (e Experiment) AgentConfig() swarm.Config {
	return swarm.Config{
		CommunicationRange:     e.CommunicationRange,
		SensingNoise:           e.SensingNoise,
		CommunicationNoise:     e.CommunicationNoise,
		MaxNewOpinionWeighting: e.MaxNewOpinionWeighting,
		Weighting:              swarm.WeightingMethod(e.OpinionWeightingMethod),
	}
}

// WithSeed returns a copy of e for one episode of a batch.
func (e Experiment) WithSeed(seed int64) Experiment {
	e.Seed = seed
	return e
}

// Digest is the sha256 of the canonical JSON encoding.
func (e Experiment) Digest() string {
	b, _ := json.Marshal(e)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func ParseHeading(s string) (grid.Direction, bool) {
	for d := grid.Up; d <= grid.Left; d++ {
		if d.String() == s {
			return d, true
		}
	}
	return 0, false
}
