// Package benchmark - Repeatable throughput measurements of the cell-shading
// pipeline across resolutions and parameter sets.
package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/shading"
)

// Resolution represents image dimensions for benchmarking.
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// Scenario defines one benchmark configuration: every corpus image is resized to
// Resolution and cell-shaded with Params.
type Scenario struct {
	Name       string                `json:"name"`
	Resolution Resolution            `json:"resolution"`
	Params     shading.RawParameters `json:"params"`
	Iterations int                   `json:"iterations"`
	WarmupRuns int                   `json:"warmup_runs"`
}

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a builder with 20 iterations and 2 warmup runs.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Iterations: 20,
			WarmupRuns: 2,
		},
	}
}

// WithResolution sets the image resolution.
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithParameters sets the processing parameters.
func (sb *ScenarioBuilder) WithParameters(p shading.RawParameters) *ScenarioBuilder {
	sb.scenario.Params = p
	return sb
}

// WithIterations sets the number of measured runs.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured runs.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related scenarios.
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

// Names of the predefined scenario sets.
const (
	SetQuick       = "quick"
	SetResolutions = "resolutions"
	SetColorLevels = "color-levels"
	SetSmoothing   = "smoothing"
)

// Predefined returns a named scenario set.
func Predefined(name string, iterations int) (*ScenarioSet, error) {
	switch name {
	case SetQuick:
		return QuickScenarios(iterations), nil
	case SetResolutions:
		return ResolutionScenarios(iterations), nil
	case SetColorLevels:
		return ColorLevelScenarios(images.ResolutionTypeHD720p, iterations), nil
	case SetSmoothing:
		return SmoothingScenarios(images.ResolutionTypeHD720p, iterations), nil
	default:
		return nil, errors.Errorf("unknown scenario set %q", name)
	}
}

// QuickScenarios returns two small default-parameter scenarios.
func QuickScenarios(iterations int) *ScenarioSet {
	scenarios := make([]Scenario, 0, 2)
	for _, r := range []images.ResolutionType{images.ResolutionTypeNHD, images.ResolutionTypeQHD540} {
		res, _ := images.LookupResolution(string(r))
		scenarios = append(scenarios, NewScenarioBuilder("quick_"+string(res.Name)).
			WithResolution(res.Pixels.Width, res.Pixels.Height).
			WithIterations(iterations).
			WithWarmupRuns(1).
			Build())
	}

	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "Default parameters at two small resolutions",
		Scenarios:   scenarios,
	}
}

// ResolutionScenarios runs the default parameters at every named resolution.
func ResolutionScenarios(iterations int) *ScenarioSet {
	scenarios := make([]Scenario, 0)
	for _, res := range images.GetAllResolutions() {
		scenarios = append(scenarios, NewScenarioBuilder("resolution_"+string(res.Name)).
			WithResolution(res.Pixels.Width, res.Pixels.Height).
			WithIterations(iterations).
			Build())
	}

	return &ScenarioSet{
		Name:        "Resolution Comparison",
		Description: "Default parameters at every named output resolution",
		Scenarios:   scenarios,
	}
}

// ColorLevelScenarios sweeps the palette size at one resolution. Clustering cost
// grows with the number of levels.
func ColorLevelScenarios(resolution images.ResolutionType, iterations int) *ScenarioSet {
	res, _ := images.LookupResolution(string(resolution))
	scenarios := make([]Scenario, 0)
	for _, k := range []int{shading.MinColorLevels, 4, shading.DefaultColorLevels, 12, 16, shading.MaxColorLevels} {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("levels_%d_%s", k, res.Name)).
			WithResolution(res.Pixels.Width, res.Pixels.Height).
			WithParameters(shading.RawParameters{ColorLevels: shading.Ptr(k)}).
			WithIterations(iterations).
			Build())
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Color Level Comparison @ %s", res.Name),
		Description: "Palette sizes from the minimum to the maximum",
		Scenarios:   scenarios,
	}
}

// SmoothingScenarios sweeps the bilateral diameter at one resolution.
func SmoothingScenarios(resolution images.ResolutionType, iterations int) *ScenarioSet {
	res, _ := images.LookupResolution(string(resolution))
	scenarios := make([]Scenario, 0)
	for _, d := range []int{shading.MinSmoothingAmount, 3, shading.DefaultSmoothingAmount, 11, shading.MaxSmoothingAmount} {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("smoothing_%d_%s", d, res.Name)).
			WithResolution(res.Pixels.Width, res.Pixels.Height).
			WithParameters(shading.RawParameters{SmoothingAmount: shading.Ptr(d)}).
			WithIterations(iterations).
			Build())
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Smoothing Comparison @ %s", res.Name),
		Description: "Bilateral diameters from the minimum to the maximum",
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file.
func SaveScenarioSet(set *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(set, "", "  ")
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

	var set ScenarioSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}
	return &set, nil
}
