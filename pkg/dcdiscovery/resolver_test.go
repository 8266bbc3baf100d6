package dcdiscovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

type fakeMDNSResolver struct {
	entry *zeroconf.ServiceEntry
	delay time.Duration
}

func (f *fakeMDNSResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.entry != nil {
		select {
		case entries <- f.entry:
		case <-ctx.Done():
		}
	}
	return nil
}

func TestResolverLookupFound(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	entry.HostName = "dev-dc.local."
	entry.Port = 8443
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.0.2.10")}

	r, err := NewResolver(ResolverConfig{MDNSResolver: &fakeMDNSResolver{entry: entry}})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	resolved, err := r.Lookup(context.Background(), "dev-dc")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if resolved.Port != 8443 || resolved.IPv4.String() != "192.0.2.10" {
		t.Fatalf("Lookup = %+v, want port 8443 ip 192.0.2.10", resolved)
	}
}

func TestResolverLookupNotFound(t *testing.T) {
	r, err := NewResolver(ResolverConfig{MDNSResolver: &fakeMDNSResolver{}, LookupTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, err := r.Lookup(context.Background(), "missing"); err != ErrServiceNotFound {
		t.Fatalf("Lookup with no entry = %v, want ErrServiceNotFound", err)
	}
}

func TestResolveDevModeFallsBackToProduction(t *testing.T) {
	r, err := NewResolver(ResolverConfig{MDNSResolver: &fakeMDNSResolver{}, LookupTimeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ep := Resolve(context.Background(), Config{DevMode: true, DevInstance: "dev-dc", Resolver: r})
	if ep.ID != DefaultDC {
		t.Fatalf("Resolve fallback ID = %d, want %d", ep.ID, DefaultDC)
	}
}

func TestResolveDevModeUsesDiscoveredEndpoint(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	entry.Port = 9000
	entry.AddrIPv4 = []net.IP{net.ParseIP("10.0.0.5")}

	r, err := NewResolver(ResolverConfig{MDNSResolver: &fakeMDNSResolver{entry: entry}})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	ep := Resolve(context.Background(), Config{DevMode: true, DevInstance: "dev-dc", Resolver: r})
	if ep.ID != DevDCID || ep.IPv4 == nil || ep.IPv4.Host != "10.0.0.5" || ep.IPv4.Port != 9000 {
		t.Fatalf("Resolve dev endpoint = %+v", ep)
	}
}

func TestResolveProductionModeSkipsMDNS(t *testing.T) {
	ep := Resolve(context.Background(), Config{})
	if ep.ID != DefaultDC {
		t.Fatalf("Resolve with DevMode off = %+v, want ID %d", ep, DefaultDC)
	}
}
