package chat

import (
	"math"
	"sort"
	"time"

	"github.com/floatplane/floatchat/internal/ui"
	"go.uber.org/zap"
)

// StreamPerfEnv enables stream statistics and render timings in the log.
const StreamPerfEnv = "FLOATCHAT_DEBUG_STREAM_PERF"

// TelemetryFromEnv reports whether StreamPerfEnv is set to a true value.
func TelemetryFromEnv(getenv func(string) string) bool {
	return ui.ParseBoolDefault(getenv(StreamPerfEnv), false)
}

// renderPerf collects transcript render durations.
type renderPerf struct {
	// Diagnostic mode keeps all samples for accurate percentile reporting.
	samplesMicros []int64
	totalMicros   int64
	maxMicros     int64
}

type durationSummary struct {
	Count int
	Total time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

func (c *renderPerf) add(d time.Duration) {
	if d < 0 {
		return
	}
	micros := d.Microseconds()
	c.samplesMicros = append(c.samplesMicros, micros)
	c.totalMicros += micros
	if micros > c.maxMicros {
		c.maxMicros = micros
	}
}

func (c *renderPerf) summary() durationSummary {
	if len(c.samplesMicros) == 0 {
		return durationSummary{}
	}

	sorted := append([]int64(nil), c.samplesMicros...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	mean := c.totalMicros / int64(len(c.samplesMicros))

	return durationSummary{
		Count: len(c.samplesMicros),
		Total: time.Duration(c.totalMicros) * time.Microsecond,
		Mean:  time.Duration(mean) * time.Microsecond,
		P50:   time.Duration(percentileFromSortedMicros(sorted, 0.50)) * time.Microsecond,
		P95:   time.Duration(percentileFromSortedMicros(sorted, 0.95)) * time.Microsecond,
		Max:   time.Duration(c.maxMicros) * time.Microsecond,
	}
}

func (c *renderPerf) log(logger *zap.Logger) {
	s := c.summary()
	if s.Count == 0 {
		return
	}
	logger.Info("render stats",
		zap.Int("renders", s.Count),
		zap.Duration("total", s.Total),
		zap.Duration("mean", s.Mean),
		zap.Duration("p50", s.P50),
		zap.Duration("p95", s.P95),
		zap.Duration("max", s.Max),
	)
}

func percentileFromSortedMicros(sorted []int64, pct float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 1 {
		return sorted[len(sorted)-1]
	}

	rank := int(math.Ceil(pct*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
