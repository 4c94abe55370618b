package resolver

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/go-logr/logr"
)

// BootstrapHost is looked up with the system resolver to find the pinned server.
const BootstrapHost = "resolver1.opendns.com"

// FallbackServer is used when BootstrapHost yields no IPv4 address.
var FallbackServer = netip.AddrFrom4([4]byte{208, 67, 222, 222})

// LookupFunc resolves host with the system resolver. It matches
// (*net.Resolver).LookupNetIP.
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// Bootstrap finds the address of the server to pin. A nil lookup uses
// net.DefaultResolver.
func Bootstrap(ctx context.Context, log logr.Logger, lookup LookupFunc) netip.AddrPort {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupNetIP
	}

	addrs, err := lookup(ctx, "ip4", BootstrapHost)
	if err != nil {
		log.Error(err, "bootstrap lookup failed, using fallback", "host", BootstrapHost, "fallback", FallbackServer.String())
		return netip.AddrPortFrom(FallbackServer, DefaultPort)
	}
	for _, addr := range addrs {
		addr = addr.Unmap()
		if addr.Is4() && !addr.IsUnspecified() {
			log.V(1).Info("bootstrapped pinned server", "host", BootstrapHost, "server", addr.String())
			return netip.AddrPortFrom(addr, DefaultPort)
		}
	}
	log.Info("bootstrap lookup returned no IPv4 address, using fallback", "host", BootstrapHost, "fallback", FallbackServer.String())
	return netip.AddrPortFrom(FallbackServer, DefaultPort)
}

// ParseServer parses an explicitly configured upstream, "ip" or "ip:port".
func ParseServer(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid resolver address %q: want ip or ip:port", s)
	}
	return netip.AddrPortFrom(addr, DefaultPort), nil
}
