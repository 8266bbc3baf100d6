// mtproto-client dials a single MTProto data center, runs the
// unauthenticated-key-exchange handshake, and stays connected until
// interrupted.
//
// Usage:
//
//	mtproto-client [options]
//
// Options:
//
//	-host      DC hostname or IP (default: the production DC 2 address)
//	-port      DC port (default: 443)
//	-dc        Numeric DC id to register the connection under (default: 2)
//	-dev       Use mDNS to discover a local development DC instead
//	-instance  mDNS instance name to look up when -dev is set
//	-pfs       Negotiate a bound temp auth key after the permanent one
//
// Example:
//
//	mtproto-client -dev -instance my-test-dc
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/telemtproto/mtproto/pkg/client"
	"github.com/telemtproto/mtproto/pkg/dc"
	"github.com/telemtproto/mtproto/pkg/dcdiscovery"
)

func main() {
	opts := parseFlags()

	endpoint := resolveEndpoint(opts)

	c, err := client.New(client.Config{
		DCID: endpoint.id,
		Host: endpoint.host,
		Port: endpoint.port,
		PFS:  opts.pfs,
	})
	if err != nil {
		log.Fatalf("failed to create client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		select {
		case <-c.Ready():
			log.Printf("authorized with dc %d", endpoint.id)
		case <-ctx.Done():
		}
	}()

	log.Printf("connecting to %s:%d (dc %d)", endpoint.host, endpoint.port, endpoint.id)
	if err := c.Run(ctx); err != nil {
		log.Fatalf("client error: %v", err)
	}
	log.Println("shut down")
}

type options struct {
	host     string
	port     int
	dcID     uint32
	dev      bool
	instance string
	pfs      bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.host, "host", "", "DC hostname or IP (overrides -dc's production address)")
	flag.IntVar(&o.port, "port", 0, "DC port (overrides -dc's production port)")
	dcID := flag.Uint("dc", uint(dcdiscovery.DefaultDC), "numeric DC id to connect to")
	flag.BoolVar(&o.dev, "dev", false, "discover a local development DC over mDNS instead")
	flag.StringVar(&o.instance, "instance", "mtproto-dc", "mDNS instance name to look up when -dev is set")
	flag.BoolVar(&o.pfs, "pfs", false, "negotiate a bound temp auth key after the permanent one")
	flag.Parse()
	o.dcID = uint32(*dcID)
	return o
}

// resolveEndpoint picks the target DC: the explicit -host/-port override
// if given, an mDNS-discovered dev DC if -dev is set, or the production
// table entry for -dc otherwise.
func resolveEndpoint(o options) dcEndpointView {
	if o.host != "" {
		port := o.port
		if port == 0 {
			port = 443
		}
		return dcEndpointView{id: o.dcID, host: o.host, port: port}
	}

	if o.dev {
		resolver, err := dcdiscovery.NewResolver(dcdiscovery.ResolverConfig{LookupTimeout: 5 * time.Second})
		if err != nil {
			log.Printf("mDNS resolver unavailable, falling back to production table: %v", err)
		} else {
			ep := dcdiscovery.Resolve(context.Background(), dcdiscovery.Config{
				DevMode:     true,
				DevInstance: o.instance,
				Resolver:    resolver,
			})
			return viewOf(ep)
		}
	}

	for _, ep := range dcdiscovery.ProductionEndpoints() {
		if ep.ID == o.dcID {
			return viewOf(ep)
		}
	}
	return viewOf(dcdiscovery.Resolve(context.Background(), dcdiscovery.Config{}))
}

// dcEndpointView flattens a dc.Endpoint down to the single IPv4 host/port
// pair this demo binary actually dials.
type dcEndpointView struct {
	id   uint32
	host string
	port int
}

func viewOf(ep dc.Endpoint) dcEndpointView {
	v := dcEndpointView{id: ep.ID, port: 443}
	if ep.IPv4 != nil {
		v.host = ep.IPv4.Host
		v.port = ep.IPv4.Port
	} else if ep.IPv6 != nil {
		v.host = ep.IPv6.Host
		v.port = ep.IPv6.Port
	}
	return v
}
