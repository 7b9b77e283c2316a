// Package weather fetches current conditions from OpenWeatherMap.
package weather

import (
	"context"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/domain"
)

// Provider returns the current conditions for a location. Transport failures
// come back as errors; a response without usable data comes back as an
// Unavailable result.
type Provider interface {
	Fetch(ctx context.Context, location string) (Result, error)
}

// Result is either an available sample or an explicit unavailable marker.
type Result struct {
	sample    domain.WeatherSample
	available bool
	reason    string
}

func Available(s domain.WeatherSample) Result {
	return Result{sample: s, available: true}
}

func Unavailable(reason string) Result {
	return Result{reason: reason}
}

func (r Result) Sample() (domain.WeatherSample, bool) {
	return r.sample, r.available
}

func (r Result) IsAvailable() bool { return r.available }

// Reason explains an unavailable result; empty when available.
func (r Result) Reason() string { return r.reason }
