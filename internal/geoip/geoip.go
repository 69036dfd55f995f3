// Package geoip derives the default location targeting value from a client IP.
package geoip

import (
	"encoding/json"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP resolves locations using a MaxMind DB or a JSON list of networks.
type GeoIP struct {
	db       *geoip2.Reader
	fallback []record
}

type record struct {
	net     *net.IPNet
	country string
	region  string
}

// Init opens the GeoIP2 database located at path. When path is not a MaxMind
// database it is read as a JSON array of {"net","country","region"} entries.
func Init(path string) (*GeoIP, error) {
	g := &GeoIP{}
	db, err := geoip2.Open(path)
	if err == nil {
		g.db = db
		return g, nil
	}

	data, jerr := os.ReadFile(path)
	if jerr != nil {
		return nil, err
	}
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
		Region  string `json:"region"`
	}
	if jerr = json.Unmarshal(data, &entries); jerr != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.fallback = append(g.fallback, record{net: n, country: e.Country, region: e.Region})
		}
	}
	return g, nil
}

// lookup returns the ISO country and subdivision codes for ip. Either may be
// empty. Country databases carry no subdivisions, so the City lookup is only
// attempted once a country is known.
func (g *GeoIP) lookup(ip net.IP) (country, region string) {
	if g == nil || ip == nil {
		return "", ""
	}
	if g.db != nil {
		if rec, err := g.db.Country(ip); err == nil {
			country = rec.Country.IsoCode
		}
		if country != "" {
			if rec, err := g.db.City(ip); err == nil && len(rec.Subdivisions) > 0 {
				region = rec.Subdivisions[0].IsoCode
			}
			return country, region
		}
	}
	for _, r := range g.fallback {
		if r.net.Contains(ip) {
			return r.country, r.region
		}
	}
	return "", ""
}

// Country returns the ISO country code for ip, or "".
func (g *GeoIP) Country(ip net.IP) string {
	c, _ := g.lookup(ip)
	return c
}

// Region returns the subdivision code for ip, or "".
func (g *GeoIP) Region(ip net.IP) string {
	_, r := g.lookup(ip)
	return r
}

// Location returns the location targeting value for ip: "DE-BY" when the
// subdivision is known, "DE" when only the country is, "" otherwise.
func (g *GeoIP) Location(ip net.IP) string {
	c, r := g.lookup(ip)
	switch {
	case c == "":
		return ""
	case r == "":
		return c
	default:
		return c + "-" + r
	}
}

// Close releases resources associated with the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}
