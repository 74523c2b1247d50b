package geoip

import (
	"fmt"
	"sync"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// StaticResolver serves locations from an in-memory table. It backs the demo
// scenarios and tests, and deployments without a MaxMind database.
type StaticResolver struct {
	mu      sync.RWMutex
	entries map[string]models.GeoLocation
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{entries: make(map[string]models.GeoLocation)}
}

// Set registers a location for ip.
func (s *StaticResolver) Set(ip, continent, country, city string, lat, lon float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ip] = models.GeoLocation{
		IP:        ip,
		Continent: continent,
		Country:   country,
		City:      city,
		Latitude:  &lat,
		Longitude: &lon,
	}
}

func (s *StaticResolver) Lookup(ip string) (models.GeoLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	geo, ok := s.entries[ip]
	if !ok {
		return models.GeoLocation{}, fmt.Errorf("%w: address %s", models.ErrNotFound, ip)
	}
	return geo, nil
}

func (s *StaticResolver) Resolve(ip string) models.GeoLocation {
	return resolveWith(s, ip)
}
