package dcdiscovery

import (
	"context"

	"github.com/telemtproto/mtproto/pkg/dc"
)

// Config selects how Resolve picks a starting DC endpoint.
type Config struct {
	// DevMode enables the mDNS lookup of a locally-hosted DC before
	// falling back to the production table. Off by default: production
	// clients never probe the LAN for a DC.
	DevMode bool

	// DevInstance is the mDNS instance name to look up when DevMode is
	// set.
	DevInstance string

	Resolver *Resolver
}

// Resolve returns the dc.Endpoint a fresh client should connect to
// first: the mDNS-discovered development DC when Config.DevMode is set
// and the lookup succeeds, otherwise DefaultDC from the production table
//.
func Resolve(ctx context.Context, config Config) dc.Endpoint {
	if config.DevMode && config.Resolver != nil {
		if resolved, err := config.Resolver.Lookup(ctx, config.DevInstance); err == nil {
			return devEndpoint(resolved)
		}
	}
	return productionDefault()
}

func devEndpoint(resolved ResolvedDC) dc.Endpoint {
	ep := dc.Endpoint{ID: DevDCID}
	if resolved.IPv4 != nil {
		ep.IPv4 = &dc.Addr{Host: resolved.IPv4.String(), Port: resolved.Port}
	}
	if resolved.IPv6 != nil {
		ep.IPv6 = &dc.Addr{Host: resolved.IPv6.String(), Port: resolved.Port}
	}
	return ep
}

func productionDefault() dc.Endpoint {
	for _, ep := range ProductionEndpoints() {
		if ep.ID == DefaultDC {
			return ep
		}
	}
	return dc.Endpoint{ID: DefaultDC}
}
