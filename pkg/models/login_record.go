package models

import "time"

// LoginEvent is a single login attempt as reported by the integrating application.
//
// Timestamp is supplied by the caller; the ingestion API stamps it server-side
// when the client omits it. Geo is attached after GeoLookup and Success carries
// the authentication outcome decided outside this module.
type LoginEvent struct {
	ID        string       `json:"id,omitempty"`
	UserID    string       `json:"user_id"`
	Timestamp time.Time    `json:"timestamp"`
	IP        string       `json:"ip"`
	DeviceID  string       `json:"device_id"`
	Browser   string       `json:"browser"`
	Geo       *GeoLocation `json:"geo,omitempty"`
	Success   *bool        `json:"success,omitempty"`
}

// GeoLocation is the result of resolving an IP address.
//
// When the lookup fails Error is set and Latitude/Longitude are nil. Any of the
// name fields may be empty even on success.
type GeoLocation struct {
	IP        string   `json:"ip"`
	Continent string   `json:"continent,omitempty"`
	Country   string   `json:"country,omitempty"`
	City      string   `json:"city,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Failed reports whether the lookup that produced g failed.
func (g *GeoLocation) Failed() bool {
	return g == nil || g.Error != ""
}

// Coordinates returns the point and true only when both coordinates are present.
func (g *GeoLocation) Coordinates() (lat, lon float64, ok bool) {
	if g.Failed() || g.Latitude == nil || g.Longitude == nil {
		return 0, 0, false
	}
	return *g.Latitude, *g.Longitude, true
}

// FailedGeo builds an error-marked location for ip.
func FailedGeo(ip string, err error) GeoLocation {
	msg := "lookup failed"
	if err != nil {
		msg = err.Error()
	}
	return GeoLocation{IP: ip, Error: msg}
}

// LastLoginRecord is the baseline kept per user: the most recently evaluated login.
type LastLoginRecord struct {
	UserID    string
	Geo       GeoLocation
	Timestamp time.Time
	DeviceID  string
	Browser   string
}
