package console

import (
	"encoding/base64"
	"math"
	"strings"

	"github.com/MegaGrindStone/argus-console/internal/models"
)

// DefaultWarningThreshold is the load percentage above which a bar switches to the warning color.
const DefaultWarningThreshold = 80

// Bar names used with TelemetryView.SetBar.
const (
	BarCPU = "cpu"
	BarRAM = "ram"
)

// StatsReactor maps host load onto the two load bars.
type StatsReactor struct {
	view      TelemetryView
	threshold float64
}

// NewStatsReactor creates a reactor; a non-positive threshold selects DefaultWarningThreshold.
func NewStatsReactor(view TelemetryView, threshold float64) *StatsReactor {
	if threshold <= 0 {
		threshold = DefaultWarningThreshold
	}
	return &StatsReactor{view: view, threshold: threshold}
}

// OnStats updates both bars. Values are clamped to [0, 100]; a bar warns strictly above the threshold.
func (r *StatsReactor) OnStats(stats models.SystemStats) {
	cpu := clampPercent(stats.CPU)
	ram := clampPercent(stats.RAM)

	r.view.SetBar(BarCPU, cpu, cpu > r.threshold)
	r.view.SetBar(BarRAM, ram, ram > r.threshold)
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// FrameReactor maps camera frames onto the live image.
type FrameReactor struct {
	view TelemetryView
}

// NewFrameReactor creates a reactor drawing on view.
func NewFrameReactor(view TelemetryView) *FrameReactor {
	return &FrameReactor{view: view}
}

// OnFrame shows image if it is valid base64, otherwise the "no signal" placeholder. A data URL prefix is
// accepted and stripped.
func (r *FrameReactor) OnFrame(image string) {
	if i := strings.Index(image, ";base64,"); i >= 0 && strings.HasPrefix(image, "data:") {
		image = image[i+len(";base64,"):]
	}

	if image == "" {
		r.view.SetImage("", false)
		return
	}
	if _, err := base64.StdEncoding.DecodeString(image); err != nil {
		r.view.SetImage("", false)
		return
	}
	r.view.SetImage(image, true)
}
