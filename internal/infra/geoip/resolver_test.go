package geoip

import (
	"errors"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"
)

func TestOpenEmptyPath(t *testing.T) {
	r, err := Open("  ")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil resolver for empty path")
	}
	if r.Lookup() != nil {
		t.Fatalf("expected nil lookup for nil resolver")
	}
	if _, err := r.CountryCode("203.0.113.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}

type fakeReader struct {
	codes map[string]string
	hits  int
}

func (f *fakeReader) Country(ip net.IP) (*geoip2.Country, error) {
	f.hits++
	var c geoip2.Country
	code, ok := f.codes[ip.String()]
	if !ok {
		return nil, errors.New("not found")
	}
	c.Country.IsoCode = code
	return &c, nil
}

func (f *fakeReader) Close() error { return nil }

func TestCountryCodeCachesAnswers(t *testing.T) {
	reader := &fakeReader{codes: map[string]string{"203.0.113.1": "jp"}}
	r := newResolver(reader)

	for range 3 {
		code, err := r.CountryCode(" 203.0.113.1 ")
		if err != nil || code != "JP" {
			t.Fatalf("CountryCode = %q, %v", code, err)
		}
	}
	if reader.hits != 1 {
		t.Fatalf("reader hits = %d, want 1", reader.hits)
	}
}

func TestCountryCodeSkipsLocalAddresses(t *testing.T) {
	reader := &fakeReader{}
	r := newResolver(reader)
	for _, ip := range []string{"127.0.0.1", "10.1.2.3", "::1", "0.0.0.0"} {
		code, err := r.CountryCode(ip)
		if err != nil || code != "" {
			t.Fatalf("%s: CountryCode = %q, %v", ip, code, err)
		}
	}
	if reader.hits != 0 {
		t.Fatal("local addresses reached the database")
	}
	if _, err := r.CountryCode("not-an-ip"); err == nil {
		t.Fatal("expected error for invalid ip")
	}
	if _, err := r.CountryCode("198.51.100.9"); err == nil {
		t.Fatal("expected lookup error to surface")
	}
}
