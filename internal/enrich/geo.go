// Package enrich resolves request sources to coarse geography for alert
// context. The GeoIP database is optional; a nil Resolver is safe to use
// and resolves everything to the empty string.
package enrich

import (
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/medichain/medguard/internal/logging"
)

type Resolver struct {
	db *geoip2.Reader
}

// Open loads a MaxMind city database. An empty path yields a nil resolver,
// which disables enrichment without erroring.
func Open(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Resolver{db: db}, nil
}

// Country returns the ISO country code for an IP source, or "" for
// unresolvable/private addresses or a disabled resolver.
func (r *Resolver) Country(source string) string {
	if r == nil || r.db == nil {
		return ""
	}
	ip := net.ParseIP(source)
	if ip == nil {
		return ""
	}
	rec, err := r.db.Country(ip)
	if err != nil {
		logging.L.Debugw("geoip lookup failed", "source", source, "err", err)
		return ""
	}
	return rec.Country.IsoCode
}

func (r *Resolver) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
