package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nvr-ai/go-cellshade/images"
	"github.com/nvr-ai/go-cellshade/shading"
	"github.com/nvr-ai/go-cellshade/util"
)

// Suite manages and executes benchmark scenarios against one pipeline.
type Suite struct {
	pipeline  *shading.Pipeline
	outputDir string
	logger    zerolog.Logger

	mu        sync.RWMutex
	scenarios []Scenario
	corpus    []*images.BGR
	results   []PerformanceMetrics
}

// NewSuite creates a benchmark suite writing its results to outputDir.
//
// Arguments:
//   - pipeline: The pipeline under test.
//   - outputDir: Directory receiving the JSON and CSV results.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(pipeline *shading.Pipeline, outputDir string) *Suite {
	return &Suite{
		pipeline:  pipeline,
		outputDir: outputDir,
		logger:    log.With().Str("component", "benchmark").Logger(),
		scenarios: make([]Scenario, 0),
		results:   make([]PerformanceMetrics, 0),
	}
}

// WithLogger replaces the suite logger.
func (s *Suite) WithLogger(l zerolog.Logger) *Suite {
	s.logger = l
	return s
}

// AddScenario adds a scenario to the suite.
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// AddScenarioSet adds every scenario of a set.
func (s *Suite) AddScenarioSet(set *ScenarioSet) {
	for _, sc := range set.Scenarios {
		s.AddScenario(sc)
	}
}

// AddImage adds a decoded image to the corpus.
func (s *Suite) AddImage(img *images.BGR) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus = append(s.corpus, img)
}

// LoadCorpus decodes image files into the corpus. Unreadable files are skipped
// with a warning.
func (s *Suite) LoadCorpus(paths ...string) error {
	loaded := 0
	for _, path := range paths {
		f, err := util.LoadImageFile(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping corpus file")
			continue
		}
		img, _, err := images.Decode(f.Data)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("skipping corpus file")
			continue
		}
		s.AddImage(img)
		loaded++
	}
	if loaded == 0 {
		return errors.New("no readable images in corpus")
	}
	return nil
}

// SyntheticImage returns a deterministic test card: a color gradient crossed by
// hard-edged bands, so both the edge and the clustering stages have work to do.
func SyntheticImage(width, height int) *images.BGR {
	img := images.NewBGR(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			b := uint8(x * 255 / width)
			g := uint8(y * 255 / height)
			r := uint8((x + y) * 255 / (width + height))
			if (x/32+y/32)%3 == 0 {
				b, g, r = 255-b, 255-g, r/2
			}
			img.Set(x, y, b, g, r)
		}
	}
	return img
}

// RunScenario executes a single scenario.
//
// Every corpus image is first resized to the scenario resolution so the measured
// runs process exactly that many pixels. Warmup runs are not measured and their
// errors are ignored.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("scenario %s: iterations must be positive", scenario.Name)
	}
	if scenario.Resolution.Width <= 0 || scenario.Resolution.Height <= 0 {
		return nil, errors.Errorf("scenario %s: invalid resolution %dx%d", scenario.Name, scenario.Resolution.Width, scenario.Resolution.Height)
	}

	inputs, err := s.prepare(scenario.Resolution)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}

	metrics := &PerformanceMetrics{
		Scenario:  scenario,
		Backend:   s.pipeline.Backend().Name(),
		Timestamp: time.Now(),
		NumCPU:    runtime.NumCPU(),
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, _ = s.pipeline.Process(inputs[i%len(inputs)], scenario.Params)
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	var sum shading.Timings
	succeeded := 0
	startTime := time.Now()

	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.pipeline.Process(inputs[i%len(inputs)], scenario.Params)
		if err != nil {
			metrics.Errors++
			s.logger.Debug().Err(err).Str("scenario", scenario.Name).Int("iteration", i).Msg("iteration failed")
			continue
		}
		accumulate(&sum, res.Timings)
		succeeded++
	}

	metrics.TotalDuration = time.Since(startTime)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	sum.Timestamp = startTime
	metrics.MeanTimings = mean(sum, succeeded)
	if secs := metrics.TotalDuration.Seconds(); secs > 0 {
		metrics.ImagesPerSecond = float64(succeeded) / secs
		metrics.MegapixelsPerSecond = float64(sum.Pixels) / 1e6 / secs
	}
	metrics.ErrorRate = float64(metrics.Errors) / float64(scenario.Iterations)
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}

	return metrics, nil
}

// prepare resizes the corpus, or a synthetic image when it is empty, to res.
func (s *Suite) prepare(res Resolution) ([]*images.BGR, error) {
	s.mu.RLock()
	corpus := make([]*images.BGR, len(s.corpus))
	copy(corpus, s.corpus)
	s.mu.RUnlock()

	if len(corpus) == 0 {
		return []*images.BGR{SyntheticImage(res.Width, res.Height)}, nil
	}

	inputs := make([]*images.BGR, 0, len(corpus))
	for _, img := range corpus {
		if img.SameSize(res.Width, res.Height) {
			inputs = append(inputs, img)
			continue
		}
		interp := images.ChooseInterpolation(img.Width, img.Height, res.Width, res.Height)
		resized, err := images.Resize(img, res.Width, res.Height, interp)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resize corpus image")
		}
		inputs = append(inputs, resized)
	}
	return inputs, nil
}

// RunAllScenarios executes every scenario in order. A failed scenario is logged
// and skipped; a cancelled context stops the run.
func (s *Suite) RunAllScenarios(ctx context.Context) error {
	s.mu.RLock()
	scenarios := make([]Scenario, len(s.scenarios))
	copy(scenarios, s.scenarios)
	s.mu.RUnlock()

	for _, scenario := range scenarios {
		metrics, err := s.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Str("scenario", scenario.Name).Msg("scenario failed")
			continue
		}

		s.mu.Lock()
		s.results = append(s.results, *metrics)
		s.mu.Unlock()

		s.logger.Info().
			Str("scenario", scenario.Name).
			Float64("images_per_second", metrics.ImagesPerSecond).
			Float64("megapixels_per_second", metrics.MegapixelsPerSecond).
			Object("mean", metrics.MeanTimings).
			Msg("scenario completed")
	}
	return nil
}

// SaveResults writes the results as JSON and a CSV summary.
//
// Returns:
//   - string: Path of the JSON results.
//   - string: Path of the CSV summary.
//   - error: An error if either file could not be written.
func (s *Suite) SaveResults() (string, string, error) {
	results := s.GetResults()

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))
	summaryFile := filepath.Join(s.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", "", errors.Wrap(err, "failed to save summary CSV")
	}

	s.logger.Info().Str("results", resultsFile).Str("summary", summaryFile).Msg("benchmark results saved")
	return resultsFile, summaryFile, nil
}

// SummaryHeader is the first row of the CSV summary.
var SummaryHeader = []string{
	"scenario", "backend", "resolution", "iterations", "images_per_second", "megapixels_per_second",
	"mean_total_ms", "mean_smooth_ms", "mean_edge_ms", "mean_quantize_ms", "alloc_mb", "error_rate",
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	ms := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d.Nanoseconds())/1e6, 'f', 2, 64)
	}

	w := csv.NewWriter(file)
	if err := w.Write(SummaryHeader); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.Scenario.Name,
			r.Backend,
			r.Scenario.Resolution.Name,
			strconv.Itoa(r.Scenario.Iterations),
			strconv.FormatFloat(r.ImagesPerSecond, 'f', 2, 64),
			strconv.FormatFloat(r.MegapixelsPerSecond, 'f', 2, 64),
			ms(r.MeanTimings.Total),
			ms(r.MeanTimings.Smooth),
			ms(r.MeanTimings.Edge),
			ms(r.MeanTimings.Quantize),
			strconv.FormatFloat(float64(r.MemoryStats.AllocBytes)/(1024*1024), 'f', 2, 64),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// GetResults returns all benchmark results.
func (s *Suite) GetResults() []PerformanceMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]PerformanceMetrics, len(s.results))
	copy(results, s.results)
	return results
}
