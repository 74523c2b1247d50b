// Package geoip resolves IP addresses to models.GeoLocation values.
//
// Every Resolver degrades instead of failing: a lookup error produces an
// error-marked location (no coordinates) so that downstream travel checks can
// skip it.
package geoip

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// ErrInvalidIP is returned for strings that do not parse as an IP address.
var ErrInvalidIP = errors.New("invalid ip address")

// Resolver maps an IP to a location, error-marked on failure.
type Resolver interface {
	Resolve(ip string) models.GeoLocation
}

// Lookuper is the fallible form of Resolver.
type Lookuper interface {
	Lookup(ip string) (models.GeoLocation, error)
}

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Service reads a MaxMind GeoLite2/GeoIP2 City database.
type Service struct {
	cityReader cityReader
}

// NewService opens the .mmdb file at cityDBPath.
func NewService(cityDBPath string) (*Service, error) {
	reader, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("open city database %s: %w", cityDBPath, err)
	}
	return &Service{cityReader: reader}, nil
}

// Close releases the database.
func (s *Service) Close() error {
	if s.cityReader == nil {
		return nil
	}
	return s.cityReader.Close()
}

// Lookup returns the English continent, country and city names and the
// coordinates recorded for ip.
func (s *Service) Lookup(ipAddress string) (models.GeoLocation, error) {
	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return models.GeoLocation{}, fmt.Errorf("%w: %q", ErrInvalidIP, ipAddress)
	}

	record, err := s.cityReader.City(ip)
	if err != nil {
		return models.GeoLocation{}, fmt.Errorf("%w: %s: %v", models.ErrGeoLookup, ipAddress, err)
	}

	// The reader answers an address missing from the database (private,
	// loopback, unallocated) with an empty record rather than an error.
	if notFound(record) {
		return models.GeoLocation{}, fmt.Errorf("%w: %s: %w", models.ErrGeoLookup, ipAddress, models.ErrNotFound)
	}

	lat, lon := record.Location.Latitude, record.Location.Longitude
	return models.GeoLocation{
		IP:        ipAddress,
		Continent: record.Continent.Names["en"],
		Country:   record.Country.Names["en"],
		City:      record.City.Names["en"],
		Latitude:  &lat,
		Longitude: &lon,
	}, nil
}

func notFound(record *geoip2.City) bool {
	return record == nil ||
		(record.Location.Latitude == 0 && record.Location.Longitude == 0 &&
			record.Country.GeoNameID == 0 && record.City.GeoNameID == 0)
}

// Resolve implements Resolver.
func (s *Service) Resolve(ip string) models.GeoLocation {
	return resolveWith(s, ip)
}

func resolveWith(l Lookuper, ip string) models.GeoLocation {
	geo, err := l.Lookup(ip)
	if err != nil {
		return models.FailedGeo(ip, err)
	}
	return geo
}
