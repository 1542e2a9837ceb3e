package logging

import (
	"strings"
	"time"
)

// ProgressSampler thins encode progress for log output. A line is emitted
// when the stage changes, when the percentage enters a new bucket, or when
// nothing was emitted for the heartbeat interval. The heartbeat keeps
// encodes with an unknown frame count visible in the log.
type ProgressSampler struct {
	bucketSize float64
	heartbeat  time.Duration
	now        func() time.Time

	lastStage  string
	lastBucket int
	lastEmit   time.Time
}

const defaultProgressHeartbeat = time.Minute

// NewProgressSampler constructs a sampler with the given bucket width in
// percent; zero or negative selects 5.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{
		bucketSize: bucketSize,
		heartbeat:  defaultProgressHeartbeat,
		now:        time.Now,
		lastBucket: -1,
	}
}

// ShouldLog reports whether a progress event should be logged. A negative
// percent means the total is unknown.
func (s *ProgressSampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	now := s.now()
	emit := false
	if stage = strings.TrimSpace(stage); stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if bucket := int(min(percent, 100) / s.bucketSize); bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	if !emit && s.heartbeat > 0 && !s.lastEmit.IsZero() && now.Sub(s.lastEmit) >= s.heartbeat {
		emit = true
	}
	if emit {
		s.lastEmit = now
	}
	return emit
}

// Reset clears the sampler state before the next file.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStage = ""
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
