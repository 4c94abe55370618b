// Package resolvertest runs an in-process DNS server for tests.
package resolvertest

import (
	"net"
	"net/netip"
	"strings"
	"sync"
	"testing"

	mdns "github.com/miekg/dns"
)

// Server answers A queries from an in-memory table. Names missing from the
// table get NXDOMAIN; names mapped to an empty slice get an empty answer.
type Server struct {
	Addr netip.AddrPort

	mu      sync.Mutex
	records map[string][]string
	silent  bool
	queries int
}

// NewServer starts a UDP server on 127.0.0.1 and stops it when the test ends.
func NewServer(t testing.TB, records map[string][]string) *Server {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{records: map[string][]string{}}
	for name, values := range records {
		s.records[mdns.Fqdn(strings.ToLower(name))] = values
	}

	started := make(chan struct{})
	srv := &mdns.Server{
		PacketConn:        pc,
		Handler:           mdns.HandlerFunc(s.serveDNS),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() {
		_ = srv.ActivateAndServe()
	}()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	s.Addr = netip.MustParseAddrPort(pc.LocalAddr().String())
	return s
}

// Set replaces the answer for name.
func (s *Server) Set(name string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[mdns.Fqdn(strings.ToLower(name))] = values
}

// Silence makes the server drop every query, forcing client timeouts.
func (s *Server) Silence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = true
}

// Queries returns how many queries the server has received.
func (s *Server) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *Server) serveDNS(w mdns.ResponseWriter, req *mdns.Msg) {
	s.mu.Lock()
	s.queries++
	silent := s.silent
	var values []string
	found := false
	if len(req.Question) == 1 {
		values, found = s.records[strings.ToLower(req.Question[0].Name)]
	}
	s.mu.Unlock()

	if silent {
		return
	}

	m := new(mdns.Msg)
	if !found {
		m.SetRcode(req, mdns.RcodeNameError)
		_ = w.WriteMsg(m)
		return
	}
	m.SetReply(req)
	q := req.Question[0]
	for _, v := range values {
		m.Answer = append(m.Answer, &mdns.A{
			Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypeA, Class: mdns.ClassINET, Ttl: 0},
			A:   net.ParseIP(v).To4(),
		})
	}
	_ = w.WriteMsg(m)
}
