package dcdiscovery

import "github.com/telemtproto/mtproto/pkg/dc"

// DevDCID is the logical DC id assigned to whatever endpoint an mDNS
// lookup resolves, since a development DC has no assigned production
// number of its own.
const DevDCID uint32 = 10000

// ProductionEndpoints is the fixed, documented table of production DC
// endpoints. It is the fallback used whenever mDNS discovery is
// disabled or finds nothing.
func ProductionEndpoints() []dc.Endpoint {
	return []dc.Endpoint{
		{ID: 1, IPv4: &dc.Addr{Host: "149.154.175.53", Port: 443}, IPv6: &dc.Addr{Host: "2001:b28:f23d:f001::a", Port: 443}},
		{ID: 2, IPv4: &dc.Addr{Host: "149.154.167.51", Port: 443}, IPv6: &dc.Addr{Host: "2001:67c:4e8:f002::a", Port: 443}},
		{ID: 3, IPv4: &dc.Addr{Host: "149.154.175.100", Port: 443}, IPv6: &dc.Addr{Host: "2001:b28:f23d:f003::a", Port: 443}},
		{ID: 4, IPv4: &dc.Addr{Host: "149.154.167.91", Port: 443}, IPv6: &dc.Addr{Host: "2001:67c:4e8:f004::a", Port: 443}},
		{ID: 5, IPv4: &dc.Addr{Host: "91.108.56.130", Port: 443}, IPv6: &dc.Addr{Host: "2001:b28:f23f:f005::a", Port: 443}},
	}
}

// DefaultDC is the DC id a fresh client starts its handshake against,
// absent any other configuration (matches the well-known default used by
// most official clients).
const DefaultDC uint32 = 2
