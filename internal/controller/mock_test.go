package controller

import (
	"context"
	"net/netip"
	"sync"
)

// mockDNSProvider records DNS operations for test assertions. A successful
// update becomes the published address, like a real upsert.
type mockDNSProvider struct {
	mu          sync.Mutex
	current     netip.Addr
	getErr      error
	updateErr   error
	getCalls    int
	updateCalls []netip.Addr
}

func newMockProvider(current string) *mockDNSProvider {
	return &mockDNSProvider{current: netip.MustParseAddr(current)}
}

func (m *mockDNSProvider) GetCurrent(_ context.Context) (netip.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return netip.Addr{}, m.getErr
	}
	return m.current, nil
}

func (m *mockDNSProvider) UpdateDNSRecord(_ context.Context, ip netip.Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls = append(m.updateCalls, ip)
	if m.updateErr != nil {
		return m.updateErr
	}
	m.current = ip
	return nil
}

func (m *mockDNSProvider) updates() []netip.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]netip.Addr(nil), m.updateCalls...)
}

// fakeResolver returns queued results in order, repeating the last one.
type fakeResolver struct {
	mu      sync.Mutex
	results []resolveResult
	calls   int
	onCall  func(n int)
}

type resolveResult struct {
	ip  netip.Addr
	err error
}

func resolvesTo(ip string) *fakeResolver {
	return &fakeResolver{results: []resolveResult{{ip: netip.MustParseAddr(ip)}}}
}

func (f *fakeResolver) MachineIP(_ context.Context) (netip.Addr, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	r := f.results[len(f.results)-1]
	if n <= len(f.results) {
		r = f.results[n-1]
	}
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	return r.ip, r.err
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
