package proxymanager

import (
	"log"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/oschwald/maxminddb-golang"
	"github.com/robfig/cron/v3"
)

// GeoReader abstracts a GeoIP country-lookup database.
type GeoReader interface {
	Lookup(ip netip.Addr) string
	Close() error
}

type noOpGeoReader struct{}

func (noOpGeoReader) Lookup(netip.Addr) string { return "" }
func (noOpGeoReader) Close() error             { return nil }

// NoOpGeoReader returns "" for every lookup, for use where no database path
// is configured.
func NoOpGeoReader() GeoReader { return noOpGeoReader{} }

type mmdbReader struct {
	reader *maxminddb.Reader
}

type mmdbCountryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	RegisteredCountry struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"registered_country"`
}

func (m *mmdbReader) Lookup(ip netip.Addr) string {
	if m == nil || m.reader == nil || !ip.IsValid() {
		return ""
	}
	ip = ip.Unmap()
	var record mmdbCountryRecord
	if err := m.reader.Lookup(net.IP(ip.AsSlice()), &record); err != nil {
		return ""
	}
	if record.Country.ISOCode != "" {
		return strings.ToLower(record.Country.ISOCode)
	}
	if record.RegisteredCountry.ISOCode != "" {
		return strings.ToLower(record.RegisteredCountry.ISOCode)
	}
	return ""
}

func (m *mmdbReader) Close() error {
	if m == nil || m.reader == nil {
		return nil
	}
	return m.reader.Close()
}

// OpenMMDB opens a MaxMind-compatible country database at path.
func OpenMMDB(path string) (GeoReader, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &mmdbReader{reader: reader}, nil
}

// GeoResolverConfig configures a GeoResolver.
type GeoResolverConfig struct {
	// DBPath is the mmdb country database path. Empty disables resolution
	// (Lookup always returns "").
	DBPath string
	// ReloadSchedule is a cron expression the database file is re-opened
	// on, to pick up an operator-replaced file without a restart. Empty
	// disables scheduled reload.
	ReloadSchedule string
	// Open overrides how the database file is opened; defaults to OpenMMDB.
	// Tests inject a fake reader here.
	Open func(path string) (GeoReader, error)
}

// GeoResolver resolves a proxy's egress IP to a lowercase ISO country code
// for Manager.VerifyEgressLocation (spec §4.E); it resolves no state or
// city, and BuildUsername does not call it. The
// database lives entirely on disk: unlike a live lookup service, nothing
// here fetches a database over the network — an operator supplies DBPath
// and swaps the file out-of-band; ReloadSchedule only controls when that
// swap is picked up.
type GeoResolver struct {
	mu     sync.RWMutex
	reader GeoReader

	path string
	open func(path string) (GeoReader, error)
	cron *cron.Cron
}

// NewGeoResolver constructs a GeoResolver and performs the initial load.
// A DBPath that does not exist yet is tolerated: Lookup returns "" until a
// scheduled reload (or a manual Reload) finds the file in place.
func NewGeoResolver(cfg GeoResolverConfig) *GeoResolver {
	open := cfg.Open
	if open == nil {
		open = OpenMMDB
	}
	r := &GeoResolver{path: cfg.DBPath, open: open}
	if cfg.DBPath != "" {
		if err := r.Reload(); err != nil {
			log.Printf("[proxymanager] geo: initial load of %s failed: %v", cfg.DBPath, err)
		}
	}
	if cfg.ReloadSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.ReloadSchedule, func() {
			if err := r.Reload(); err != nil {
				log.Printf("[proxymanager] geo: scheduled reload failed: %v", err)
			}
		}); err != nil {
			log.Printf("[proxymanager] geo: invalid reload schedule %q: %v", cfg.ReloadSchedule, err)
		} else {
			r.cron = c
			c.Start()
		}
	}
	return r
}

// Reload re-opens the database file, swapping it in once the open succeeds.
// Safe to call concurrently with Lookup.
func (r *GeoResolver) Reload() error {
	if r.path == "" {
		return nil
	}
	next, err := r.open(r.path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	old := r.reader
	r.reader = next
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Lookup returns the lowercase ISO country code for ip, or "" if unresolved.
func (r *GeoResolver) Lookup(ip netip.Addr) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reader == nil {
		return ""
	}
	return r.reader.Lookup(ip)
}

// Close stops the reload schedule and releases the database.
func (r *GeoResolver) Close() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.mu.Lock()
	reader := r.reader
	r.reader = nil
	r.mu.Unlock()
	if reader != nil {
		reader.Close()
	}
}
