package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// Resolution is a network input size.
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// Scenario is one decode benchmark configuration.
type Scenario struct {
	Name       string     `json:"name"`
	Resolution Resolution `json:"resolution"`
	People     int        `json:"people"`
	Iterations int        `json:"iterations"`
	WarmupRuns int        `json:"warmup_runs"`
	// Workers bounds the decoder's goroutines (0 = GOMAXPROCS).
	Workers int `json:"workers"`
}

// Validate checks that the scenario can run.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario name is empty")
	}
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 {
		return errors.Errorf("scenario %s: invalid resolution %dx%d", s.Name, s.Resolution.Width, s.Resolution.Height)
	}
	if s.Iterations <= 0 {
		return errors.Errorf("scenario %s: iterations must be positive", s.Name)
	}
	if s.WarmupRuns < 0 || s.Workers < 0 || s.People < 0 {
		return errors.Errorf("scenario %s: negative warmup runs, workers or people", s.Name)
	}
	return nil
}

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder.
//
// Arguments:
//   - name: The scenario name.
//
// Returns:
//   - *ScenarioBuilder: A builder defaulting to one person at 456x256.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Resolution: Resolution{Width: 456, Height: 256, Name: "456x256"},
			People:     1,
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithResolution sets the network input resolution.
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithPeople sets the number of people in the scene.
func (sb *ScenarioBuilder) WithPeople(people int) *ScenarioBuilder {
	sb.scenario.People = people
	return sb
}

// WithIterations sets the number of timed decodes.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of untimed decodes.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// WithWorkers sets the decoder's goroutine bound.
func (sb *ScenarioBuilder) WithWorkers(workers int) *ScenarioBuilder {
	sb.scenario.Workers = workers
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet is a collection of related scenarios.
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

// QuickScenarios decodes a few crowd sizes at the default resolution.
func QuickScenarios() *ScenarioSet {
	var scenarios []Scenario
	for _, people := range []int{1, 2, 3} {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("quick_%dp", people)).
			WithPeople(people).
			WithIterations(50).
			WithWarmupRuns(5).
			Build())
	}
	return &ScenarioSet{
		Name:        "Quick Decode Test",
		Description: "Decodes one to three people at 456x256",
		Scenarios:   scenarios,
	}
}

// CrowdScenarios scales the number of people at a wide resolution.
func CrowdScenarios() *ScenarioSet {
	var scenarios []Scenario
	for _, people := range []int{1, 4, 8} {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("crowd_%dp", people)).
			WithResolution(1024, 256).
			WithPeople(people).
			Build())
	}
	return &ScenarioSet{
		Name:        "Crowd Scaling",
		Description: "Decode latency as the number of people grows",
		Scenarios:   scenarios,
	}
}

// WorkerScenarios compares decoder parallelism on a fixed scene.
func WorkerScenarios(people int) *ScenarioSet {
	var scenarios []Scenario
	for _, workers := range []int{1, 2, 4, 0} {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("workers_%d_%dp", workers, people)).
			WithResolution(1024, 256).
			WithPeople(people).
			WithWorkers(workers).
			Build())
	}
	return &ScenarioSet{
		Name:        fmt.Sprintf("Worker Comparison - %d people", people),
		Description: "Decode latency per worker bound (0 = GOMAXPROCS)",
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file.
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(scenarioSet, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}

	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var scenarioSet ScenarioSet
	if err := json.Unmarshal(data, &scenarioSet); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}

	return &scenarioSet, nil
}
