package benchmark

import (
	"time"

	"github.com/nvr-ai/go-cellshade/shading"
)

// PerformanceMetrics captures the outcome of one scenario.
type PerformanceMetrics struct {
	Scenario  Scenario  `json:"scenario"`
	Backend   string    `json:"backend"`
	Timestamp time.Time `json:"timestamp"`
	// TotalDuration covers the measured iterations only.
	TotalDuration time.Duration `json:"total_duration"`
	// MeanTimings averages the per-stage timings of the successful iterations.
	MeanTimings         shading.Timings `json:"mean_timings"`
	ImagesPerSecond     float64         `json:"images_per_second"`
	MegapixelsPerSecond float64         `json:"megapixels_per_second"`
	MemoryStats         MemoryMetrics   `json:"memory_stats"`
	NumCPU              int             `json:"num_cpu"`
	Errors              int             `json:"errors"`
	ErrorRate           float64         `json:"error_rate"`
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// accumulate adds the stage durations of t into sum.
func accumulate(sum *shading.Timings, t shading.Timings) {
	sum.Total += t.Total
	sum.Normalize += t.Normalize
	sum.Resize += t.Resize
	sum.Smooth += t.Smooth
	sum.Edge += t.Edge
	sum.Saturate += t.Saturate
	sum.Quantize += t.Quantize
	sum.Composite += t.Composite
	sum.Pixels += t.Pixels
}

// mean divides every field of sum by n.
func mean(sum shading.Timings, n int) shading.Timings {
	if n == 0 {
		return shading.Timings{}
	}
	d := time.Duration(n)
	return shading.Timings{
		Timestamp: sum.Timestamp,
		Total:     sum.Total / d,
		Normalize: sum.Normalize / d,
		Resize:    sum.Resize / d,
		Smooth:    sum.Smooth / d,
		Edge:      sum.Edge / d,
		Saturate:  sum.Saturate / d,
		Quantize:  sum.Quantize / d,
		Composite: sum.Composite / d,
		Pixels:    sum.Pixels / n,
	}
}
