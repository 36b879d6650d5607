package rtccore

import "time"

const (
	rateBucketCount = 10
	rateBucketWidth = 100 * time.Millisecond
)

// PacerStats is a point-in-time snapshot of a pacer's production counters.
type PacerStats struct {
	FramesProduced uint64  // Requests completed successfully
	FramesSkipped  uint64  // Cycles dropped by drift correction
	AvgFramerate   float64 // Produced/skipped units per second over the last second
}

type rateBucket struct {
	index int64 // bucket ordinal: unix time / bucket width
	count uint64
}

// captureStats accumulates rolling production counters for one pacer. The
// rate window is a ring of fixed-width buckets covering the last second of
// produced and skipped units; the average rate is derived on read, not
// maintained continuously. Not safe for concurrent use; the owning pacer
// guards it.
type captureStats struct {
	framesProduced uint64
	framesSkipped  uint64
	buckets        [rateBucketCount]rateBucket
}

func (s *captureStats) reset() {
	*s = captureStats{}
}

func (s *captureStats) recordProduced(n uint64, now time.Time) {
	s.framesProduced += n
	s.bump(n, now)
}

func (s *captureStats) recordSkipped(n uint64, now time.Time) {
	s.framesSkipped += n
	s.bump(n, now)
}

func (s *captureStats) bump(n uint64, now time.Time) {
	idx := now.UnixNano() / int64(rateBucketWidth)
	b := &s.buckets[idx%rateBucketCount]
	if b.index != idx {
		b.index = idx
		b.count = 0
	}
	b.count += n
}

// rate sums the non-expired buckets and divides by the window duration.
func (s *captureStats) rate(now time.Time) float64 {
	idx := now.UnixNano() / int64(rateBucketWidth)
	oldest := idx - rateBucketCount + 1
	var total uint64
	for _, b := range s.buckets {
		if b.index >= oldest && b.count > 0 {
			total += b.count
		}
	}
	window := time.Duration(rateBucketCount) * rateBucketWidth
	return float64(total) / window.Seconds()
}

func (s *captureStats) snapshot(now time.Time) PacerStats {
	return PacerStats{
		FramesProduced: s.framesProduced,
		FramesSkipped:  s.framesSkipped,
		AvgFramerate:   s.rate(now),
	}
}
