package tracing

import (
	"math/rand/v2"

	"golang.org/x/time/rate"
)

// Sampler decides, once per call and before any span is created, whether the
// call is traced. Implementations must be safe for concurrent use.
type Sampler interface {
	ShouldSample(operation string) bool
}

// NewRatioSampler samples the given fraction of calls in [0, 1] with a
// uniform random draw. Out-of-range values are clamped; configuration
// validation rejects them earlier.
func NewRatioSampler(ratio float64) Sampler {
	if ratio <= 0 {
		return never{}
	}
	if ratio >= 1 {
		return always{}
	}
	return ratioSampler{ratio: ratio}
}

// Always samples every call. This is the default policy.
func Always() Sampler { return always{} }

// Never drops every call.
func Never() Sampler { return never{} }

// NewRateLimitSampler caps span creation at perSecond using a token bucket.
func NewRateLimitSampler(perSecond int) Sampler {
	if perSecond <= 0 {
		return never{}
	}
	return &rateLimitSampler{
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// Combine returns a sampler that samples only when every given sampler does.
// Evaluation short-circuits, so put cheap samplers first.
func Combine(samplers ...Sampler) Sampler {
	switch len(samplers) {
	case 0:
		return always{}
	case 1:
		return samplers[0]
	}
	return combined(samplers)
}

type always struct{}

func (always) ShouldSample(string) bool { return true }

type never struct{}

func (never) ShouldSample(string) bool { return false }

type ratioSampler struct {
	ratio float64
}

func (r ratioSampler) ShouldSample(string) bool {
	return rand.Float64() < r.ratio
}

type rateLimitSampler struct {
	limiter *rate.Limiter
}

func (r *rateLimitSampler) ShouldSample(string) bool {
	return r.limiter.Allow()
}

type combined []Sampler

func (c combined) ShouldSample(operation string) bool {
	for _, s := range c {
		if !s.ShouldSample(operation) {
			return false
		}
	}
	return true
}
