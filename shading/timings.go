package shading

import (
	"time"

	"github.com/rs/zerolog"
)

// Timings captures how long each stage of one invocation took.
type Timings struct {
	Timestamp time.Time     `json:"timestamp"`
	Total     time.Duration `json:"total"`
	Normalize time.Duration `json:"normalize"`
	Resize    time.Duration `json:"resize"`
	Smooth    time.Duration `json:"smooth"`
	Edge      time.Duration `json:"edge"`
	Saturate  time.Duration `json:"saturate"`
	Quantize  time.Duration `json:"quantize"`
	Composite time.Duration `json:"composite"`
	// Pixels is the number of output pixels processed.
	Pixels int `json:"pixels"`
}

// MegapixelsPerSecond returns output throughput over the whole invocation.
func (t Timings) MegapixelsPerSecond() float64 {
	if t.Total <= 0 {
		return 0
	}
	return float64(t.Pixels) / 1e6 / t.Total.Seconds()
}

// record stores d into the field for stage.
func (t *Timings) record(stage Stage, d time.Duration) {
	switch stage {
	case StageNormalize, StagePlan:
		t.Normalize += d
	case StageResize:
		t.Resize = d
	case StageSmooth:
		t.Smooth = d
	case StageEdge:
		t.Edge = d
	case StageSaturate:
		t.Saturate = d
	case StageQuantize:
		t.Quantize = d
	case StageComposite:
		t.Composite = d
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (t Timings) MarshalZerologObject(e *zerolog.Event) {
	e.Dur("total", t.Total).
		Dur("resize", t.Resize).
		Dur("smooth", t.Smooth).
		Dur("edge", t.Edge).
		Dur("saturate", t.Saturate).
		Dur("quantize", t.Quantize).
		Dur("composite", t.Composite).
		Float64("mpps", t.MegapixelsPerSecond())
}
