package panel

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// streamStats collects per-reply delivery statistics and logs a summary when
// the reply settles.
type streamStats struct {
	logger *zap.Logger
	now    func() time.Time

	active     bool
	turn       int
	streamID   uint64
	startedAt  time.Time
	firstDelta time.Time
	lastDelta  time.Time
	deltas     int
	bytes      int
	// gaps keeps every inter-delta interval for percentile reporting.
	gapsMicros []int64
}

func newStreamStats(logger *zap.Logger) *streamStats {
	return &streamStats{logger: logger, now: time.Now}
}

func (s *streamStats) begin(streamID uint64) {
	if s.active {
		s.end("superseded")
	}
	s.active = true
	s.turn++
	s.streamID = streamID
	s.startedAt = s.now()
	s.firstDelta = time.Time{}
	s.lastDelta = time.Time{}
	s.deltas = 0
	s.bytes = 0
	s.gapsMicros = s.gapsMicros[:0]
}

func (s *streamStats) delta(n int) {
	if !s.active {
		return
	}
	now := s.now()
	if s.firstDelta.IsZero() {
		s.firstDelta = now
	} else {
		s.gapsMicros = append(s.gapsMicros, now.Sub(s.lastDelta).Microseconds())
	}
	s.lastDelta = now
	s.deltas++
	s.bytes += n
}

type statsSummary struct {
	Turn          int
	Outcome       string
	Deltas        int
	Bytes         int
	Duration      time.Duration
	FirstDelta    time.Duration
	GapP50        time.Duration
	GapP95        time.Duration
	GapMax        time.Duration
	BytesPerDelta float64
}

func (s *streamStats) summary(outcome string) statsSummary {
	sum := statsSummary{
		Turn:     s.turn,
		Outcome:  outcome,
		Deltas:   s.deltas,
		Bytes:    s.bytes,
		Duration: s.now().Sub(s.startedAt),
	}
	if !s.firstDelta.IsZero() {
		sum.FirstDelta = s.firstDelta.Sub(s.startedAt)
	}
	if s.deltas > 0 {
		sum.BytesPerDelta = float64(s.bytes) / float64(s.deltas)
	}
	if len(s.gapsMicros) > 0 {
		sorted := append([]int64(nil), s.gapsMicros...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		sum.GapP50 = time.Duration(percentile(sorted, 0.50)) * time.Microsecond
		sum.GapP95 = time.Duration(percentile(sorted, 0.95)) * time.Microsecond
		sum.GapMax = time.Duration(sorted[len(sorted)-1]) * time.Microsecond
	}
	return sum
}

func (s *streamStats) end(outcome string) {
	if !s.active {
		return
	}
	sum := s.summary(outcome)
	s.active = false
	s.logger.Info("stream stats",
		zap.Uint64("stream", s.streamID),
		zap.Int("turn", sum.Turn),
		zap.String("outcome", sum.Outcome),
		zap.Int("deltas", sum.Deltas),
		zap.Int("bytes", sum.Bytes),
		zap.Float64("bytes_per_delta", sum.BytesPerDelta),
		zap.Duration("duration", sum.Duration),
		zap.Duration("first_delta", sum.FirstDelta),
		zap.Duration("gap_p50", sum.GapP50),
		zap.Duration("gap_p95", sum.GapP95),
		zap.Duration("gap_max", sum.GapMax),
	)
}

func percentile(sorted []int64, pct float64) int64 {
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
