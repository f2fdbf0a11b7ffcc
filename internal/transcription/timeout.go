package transcription

import (
	"math"
	"time"
)

// TimeoutPolicy derives the wall clock limit of one engine run.
type TimeoutPolicy struct {
	Base           time.Duration
	Max            time.Duration
	RealtimeFactor float64
	Per100MB       time.Duration
}

const hundredMB = 100 * 1024 * 1024

// For returns min(max(base + duration*factor, base + per100MB*ceil(size/100MB)), max).
func (p TimeoutPolicy) For(durationSeconds float64, sizeBytes int64) time.Duration {
	byDuration := p.Base + time.Duration(durationSeconds*p.RealtimeFactor*float64(time.Second))
	blocks := int64(math.Ceil(float64(max(sizeBytes, 0)) / hundredMB))
	bySize := p.Base + time.Duration(blocks)*p.Per100MB
	timeout := max(byDuration, bySize)
	if p.Max > 0 {
		timeout = min(timeout, p.Max)
	}
	return timeout
}
