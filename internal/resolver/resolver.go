// Package resolver resolves IPv4 addresses through one pinned upstream DNS
// server instead of the host's stub resolver, so every poll sees fresh data.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/go-logr/logr"
	mdns "github.com/miekg/dns"
)

const (
	// MachineIPHost answers with the address of whoever queries it when asked
	// through an OpenDNS resolver.
	MachineIPHost = "myip.opendns.com"
	// DefaultPort is the DNS port used for pinned servers.
	DefaultPort = 53

	defaultTimeout = 5 * time.Second
)

var (
	// ErrNoAddress is returned when an answer holds no A record.
	ErrNoAddress = errors.New("no address in answer")
	// ErrMultipleAddresses is returned when exactly one A record was expected.
	ErrMultipleAddresses = errors.New("multiple addresses in answer")
	// ErrUnusableAddress is returned when the machine address is not a routable IPv4 address.
	ErrUnusableAddress = errors.New("unusable machine address")
)

// Error reports a failed lookup against the pinned server.
type Error struct {
	Host   string
	Server netip.AddrPort
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolving %s via %s: %v", e.Host, e.Server, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Resolver sends A queries to a single upstream server over UDP.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	server netip.AddrPort
	client *mdns.Client
	log    logr.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds a single query exchange.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.client.Timeout = d }
}

// WithLogger sets the logger used for query tracing.
func WithLogger(log logr.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// New returns a Resolver pinned to server.
func New(server netip.AddrPort, opts ...Option) *Resolver {
	r := &Resolver{
		server: server,
		client: &mdns.Client{Net: "udp", Timeout: defaultTimeout},
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Server returns the pinned upstream.
func (r *Resolver) Server() netip.AddrPort { return r.server }

// LookupIPv4 returns every A record the pinned server answers for host.
// An empty answer is not an error; callers decide what no address means.
func (r *Resolver) LookupIPv4(ctx context.Context, host string) ([]netip.Addr, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(host), mdns.TypeA)

	in, rtt, err := r.client.ExchangeContext(ctx, m, r.server.String())
	if err != nil {
		return nil, &Error{Host: host, Server: r.server, Err: err}
	}
	if in.Truncated {
		return nil, &Error{Host: host, Server: r.server, Err: errors.New("truncated response")}
	}
	if in.Rcode != mdns.RcodeSuccess {
		return nil, &Error{Host: host, Server: r.server, Err: fmt.Errorf("server returned %s", mdns.RcodeToString[in.Rcode])}
	}

	var addrs []netip.Addr
	for _, rr := range in.Answer {
		a, ok := rr.(*mdns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A.To4()); ok {
			addrs = append(addrs, addr)
		}
	}
	r.log.V(1).Info("lookup completed", "host", host, "server", r.server.String(), "rtt", rtt, "addresses", addrs)
	return addrs, nil
}

// ResolveIPv4 returns the single A record for host.
func (r *Resolver) ResolveIPv4(ctx context.Context, host string) (netip.Addr, error) {
	addrs, err := r.LookupIPv4(ctx, host)
	if err != nil {
		return netip.Addr{}, err
	}
	switch len(addrs) {
	case 0:
		return netip.Addr{}, &Error{Host: host, Server: r.server, Err: ErrNoAddress}
	case 1:
		return addrs[0], nil
	default:
		return netip.Addr{}, &Error{Host: host, Server: r.server, Err: fmt.Errorf("%w: %v", ErrMultipleAddresses, addrs)}
	}
}

// MachineIP returns the public IPv4 address of this machine as seen by the
// pinned server. The unspecified address is rejected.
func (r *Resolver) MachineIP(ctx context.Context) (netip.Addr, error) {
	addr, err := r.ResolveIPv4(ctx, MachineIPHost)
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.Is4() || addr.IsUnspecified() {
		return netip.Addr{}, &Error{Host: MachineIPHost, Server: r.server, Err: fmt.Errorf("%w: %s", ErrUnusableAddress, addr)}
	}
	return addr, nil
}
