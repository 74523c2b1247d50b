package geoip

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/internal/metrics"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// BreakerConfig tunes the circuit breaker in front of a Lookuper.
type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
}

// BreakerResolver stops calling a failing lookup backend for a while and
// answers with error-marked locations in the meantime.
type BreakerResolver struct {
	next Lookuper
	cb   *gobreaker.CircuitBreaker[models.GeoLocation]
}

func NewBreakerResolver(next Lookuper, cfg BreakerConfig) *BreakerResolver {
	if cfg.Name == "" {
		cfg.Name = "geoip"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// A malformed or unknown address says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidIP) || errors.Is(err, models.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("geoip circuit breaker state changed")
		},
	}
	return &BreakerResolver{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[models.GeoLocation](settings),
	}
}

// Lookup runs the wrapped lookup through the breaker. When the circuit is
// open the error is gobreaker.ErrOpenState.
func (b *BreakerResolver) Lookup(ip string) (models.GeoLocation, error) {
	return b.cb.Execute(func() (models.GeoLocation, error) {
		return b.next.Lookup(ip)
	})
}

func (b *BreakerResolver) Resolve(ip string) models.GeoLocation {
	geo, err := b.Lookup(ip)
	if err != nil {
		metrics.GeoLookupFailures.Inc()
		logging.Debug().Err(err).Str("ip", ip).Msg("geo lookup failed")
		return models.FailedGeo(ip, err)
	}
	return geo
}

// State reports the breaker state, mostly for health output.
func (b *BreakerResolver) State() gobreaker.State {
	return b.cb.State()
}
