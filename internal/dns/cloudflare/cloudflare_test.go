package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"testing"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

type fakeRecord struct {
	name, content, comment string
	ttl                    int
}

// fakeZone is an in-memory Cloudflare zone.
type fakeZone struct {
	mu      sync.Mutex
	store   map[string]fakeRecord
	nextID  int
	calls   []string
	listErr error
}

func newFakeZone() *fakeZone {
	return &fakeZone{store: map[string]fakeRecord{}}
}

func (f *fakeZone) add(name, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.store[fmt.Sprintf("rec-%d", f.nextID)] = fakeRecord{name: name, content: content}
}

func (f *fakeZone) list(_ context.Context, name string) ([]record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []record
	for id, r := range f.store {
		if r.name == name {
			out = append(out, record{ID: id, Content: r.content})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeZone) create(_ context.Context, name, content string, ttl int, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	f.nextID++
	f.store[fmt.Sprintf("rec-%d", f.nextID)] = fakeRecord{name: name, content: content, ttl: ttl, comment: comment}
	return nil
}

func (f *fakeZone) remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	if _, ok := f.store[id]; !ok {
		return errors.New("record not found")
	}
	delete(f.store, id)
	return nil
}

func (f *fakeZone) contents(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.store {
		if r.name == name {
			out = append(out, r.content)
		}
	}
	sort.Strings(out)
	return out
}

func newTestProvider(t *testing.T, zone *fakeZone) *Provider {
	t.Helper()
	p, err := newProvider(zone, logr.Discard(), "home.example.com", map[string]string{})
	if err != nil {
		t.Fatalf("newProvider: %v", err)
	}
	return p
}

func TestNew_MissingSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
	}{
		{"missing zone_id", map[string]string{"api_token": "token"}},
		{"missing api_token", map[string]string{"zone_id": "zone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(logr.Discard(), "home.example.com", tt.settings)
			if !errors.Is(err, dns.ErrInvalidSetting) {
				t.Fatalf("expected ErrInvalidSetting, got %v", err)
			}
		})
	}
}

func TestNewProvider_Defaults(t *testing.T) {
	p := newTestProvider(t, newFakeZone())
	if p.ttl != dns.DefaultTTL {
		t.Errorf("expected TTL %d, got %d", dns.DefaultTTL, p.ttl)
	}
	if p.comment != defaultComment {
		t.Errorf("expected comment %q, got %q", defaultComment, p.comment)
	}
}

func TestGetCurrent(t *testing.T) {
	zone := newFakeZone()
	p := newTestProvider(t, zone)

	got, err := p.GetCurrent(context.Background())
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if got != dns.BlankIP {
		t.Errorf("expected BlankIP for empty zone, got %s", got)
	}

	zone.add("home.example.com", "1.2.3.4")
	zone.add("other.example.com", "9.9.9.9")
	got, err = p.GetCurrent(context.Background())
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if got != netip.MustParseAddr("1.2.3.4") {
		t.Errorf("expected 1.2.3.4, got %s", got)
	}

	zone.add("home.example.com", "5.6.7.8")
	if _, err := p.GetCurrent(context.Background()); !errors.Is(err, dns.ErrAmbiguousRecordSet) {
		t.Errorf("expected ErrAmbiguousRecordSet, got %v", err)
	}
}

func TestGetCurrent_ListError(t *testing.T) {
	zone := newFakeZone()
	zone.listErr = errors.New("unauthorized")
	p := newTestProvider(t, zone)

	if _, err := p.GetCurrent(context.Background()); !errors.Is(err, zone.listErr) {
		t.Fatalf("expected wrapped list error, got %v", err)
	}
}

func TestUpdateDNSRecord_Creates(t *testing.T) {
	zone := newFakeZone()
	p := newTestProvider(t, zone)

	if err := p.UpdateDNSRecord(context.Background(), netip.MustParseAddr("5.6.7.8")); err != nil {
		t.Fatalf("UpdateDNSRecord: %v", err)
	}
	if got := zone.contents("home.example.com"); len(got) != 1 || got[0] != "5.6.7.8" {
		t.Fatalf("expected [5.6.7.8], got %v", got)
	}
	for _, r := range zone.store {
		if r.ttl != dns.DefaultTTL || r.comment != defaultComment {
			t.Errorf("unexpected ttl/comment on created record: %+v", r)
		}
	}
}

func TestUpdateDNSRecord_ReplacesStale(t *testing.T) {
	zone := newFakeZone()
	zone.add("home.example.com", "1.2.3.4")
	zone.add("home.example.com", "1.2.3.5")
	p := newTestProvider(t, zone)

	if err := p.UpdateDNSRecord(context.Background(), netip.MustParseAddr("5.6.7.8")); err != nil {
		t.Fatalf("UpdateDNSRecord: %v", err)
	}
	if got := zone.contents("home.example.com"); len(got) != 1 || got[0] != "5.6.7.8" {
		t.Fatalf("expected [5.6.7.8], got %v", got)
	}
}

func TestUpdateDNSRecord_Idempotent(t *testing.T) {
	zone := newFakeZone()
	p := newTestProvider(t, zone)
	ip := netip.MustParseAddr("5.6.7.8")

	if err := p.UpdateDNSRecord(context.Background(), ip); err != nil {
		t.Fatalf("first UpdateDNSRecord: %v", err)
	}
	zone.calls = nil
	if err := p.UpdateDNSRecord(context.Background(), ip); err != nil {
		t.Fatalf("second UpdateDNSRecord: %v", err)
	}

	if got := zone.contents("home.example.com"); len(got) != 1 || got[0] != "5.6.7.8" {
		t.Fatalf("expected [5.6.7.8], got %v", got)
	}
	if len(zone.calls) != 1 || zone.calls[0] != "list" {
		t.Errorf("expected second upsert to only list, got %v", zone.calls)
	}
}
