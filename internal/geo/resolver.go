package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// UnknownCountry is reported when no database is loaded or the IP cannot be
// resolved.
const UnknownCountry = "N/A"

// Resolver answers country lookups from a MaxMind country database. A nil
// Resolver is valid and always reports UnknownCountry.
type Resolver struct {
	countryDB *geoip2.Reader
}

// Open loads the database at path.
func Open(path string) (*Resolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open country database: %w", err)
	}
	return &Resolver{countryDB: reader}, nil
}

// Country returns the ISO country code for the given IP literal.
func (r *Resolver) Country(ipAddress string) string {
	if r == nil || r.countryDB == nil {
		return UnknownCountry
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return UnknownCountry
	}

	record, err := r.countryDB.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return UnknownCountry
	}
	return record.Country.IsoCode
}

// Close releases the underlying database.
func (r *Resolver) Close() error {
	if r == nil || r.countryDB == nil {
		return nil
	}
	return r.countryDB.Close()
}
