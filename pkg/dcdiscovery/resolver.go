// Package dcdiscovery resolves the DC endpoint the client connects to
// first: the fixed production table, plus an mDNS lookup of a
// locally-hosted development/test DC advertised as "_mtproto-dc._tcp",
// falling back to the production table when nothing answers. The
// MDNSResolver interface wraps grandcat/zeroconf behind an injectable
// seam so tests can fake the lookup.
package dcdiscovery

import (
	"context"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type a development DC advertises
// itself under.
const ServiceType = "_mtproto-dc._tcp"

// DefaultDomain is the mDNS domain searched.
const DefaultDomain = "local."

// DefaultLookupTimeout bounds how long Lookup waits for a response.
const DefaultLookupTimeout = 5 * time.Second

// MDNSResolver is the interface for mDNS service resolution, allowing a
// fake in tests.
type MDNSResolver interface {
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Lookup(ctx, instance, service, domain, entries)
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// MDNSResolver overrides the default zeroconf-backed resolver.
	MDNSResolver MDNSResolver

	// LookupTimeout bounds Lookup when ctx has no deadline of its own.
	// Defaults to DefaultLookupTimeout.
	LookupTimeout time.Duration
}

// Resolver discovers a development DC via mDNS.
type Resolver struct {
	resolver MDNSResolver
	timeout  time.Duration
}

// NewResolver creates a Resolver, defaulting to the production
// zeroconf-backed MDNSResolver.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}
	timeout := config.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{resolver: resolver, timeout: timeout}, nil
}

// Lookup resolves instance under ServiceType/DefaultDomain, returning its
// addresses and port, or ErrServiceNotFound/ErrTimeout.
func (r *Resolver) Lookup(ctx context.Context, instance string) (ResolvedDC, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		defer close(entries)
		r.resolver.Lookup(ctx, instance, ServiceType, DefaultDomain, entries)
	}()

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return ResolvedDC{}, ErrServiceNotFound
		}
		return entryToResolvedDC(entry), nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ResolvedDC{}, ErrTimeout
		}
		return ResolvedDC{}, ctx.Err()
	}
}

// ResolvedDC is a development DC found over mDNS.
type ResolvedDC struct {
	HostName string
	Port     int
	IPv4     net.IP
	IPv6     net.IP
}

func entryToResolvedDC(entry *zeroconf.ServiceEntry) ResolvedDC {
	r := ResolvedDC{HostName: entry.HostName, Port: entry.Port}
	if len(entry.AddrIPv4) > 0 {
		r.IPv4 = entry.AddrIPv4[0]
	}
	if len(entry.AddrIPv6) > 0 {
		r.IPv6 = entry.AddrIPv6[0]
	}
	return r
}
