// Package cloudflare implements dns.Provider for a Cloudflare-hosted zone.
package cloudflare

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

const defaultComment = "managed by ddnsd"

func init() {
	dns.Register("cloudflare", func(_ context.Context, log logr.Logger, domain string, settings map[string]string) (dns.Provider, error) {
		return New(log, domain, settings)
	})
}

// record is the part of a Cloudflare DNS record the provider cares about.
type record struct {
	ID      string
	Content string
}

// zoneRecords manages the A records of one name inside one zone.
type zoneRecords interface {
	list(ctx context.Context, name string) ([]record, error)
	create(ctx context.Context, name, content string, ttl int, comment string) error
	remove(ctx context.Context, id string) error
}

// apiRecords is the zoneRecords implementation backed by the Cloudflare API.
type apiRecords struct {
	api    *cloudflare.API
	zoneID string
}

func (r *apiRecords) list(ctx context.Context, name string) ([]record, error) {
	recs, _, err := r.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(r.zoneID), cloudflare.ListDNSRecordsParams{
		Type: dns.RecordTypeA,
		Name: name,
	})
	if err != nil {
		return nil, err
	}
	out := make([]record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, record{ID: rec.ID, Content: rec.Content})
	}
	return out, nil
}

func (r *apiRecords) create(ctx context.Context, name, content string, ttl int, comment string) error {
	_, err := r.api.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(r.zoneID), cloudflare.CreateDNSRecordParams{
		Type:    dns.RecordTypeA,
		Name:    name,
		Content: content,
		ZoneID:  r.zoneID,
		TTL:     ttl,
		Comment: comment,
	})
	return err
}

func (r *apiRecords) remove(ctx context.Context, id string) error {
	return r.api.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(r.zoneID), id)
}

// Provider implements dns.Provider for one name in a Cloudflare zone.
type Provider struct {
	records zoneRecords
	domain  string
	ttl     int
	comment string
	log     logr.Logger
}

// New creates a Cloudflare provider for domain.
// Required settings: zone_id, api_token.
// Optional settings: ttl (default 300), comment.
func New(log logr.Logger, domain string, settings map[string]string) (*Provider, error) {
	zoneID, err := dns.RequiredSetting("cloudflare", settings, "zone_id")
	if err != nil {
		return nil, err
	}
	token, err := dns.RequiredSetting("cloudflare", settings, "api_token")
	if err != nil {
		return nil, err
	}
	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: create API client: %w", err)
	}
	return newProvider(&apiRecords{api: api, zoneID: zoneID}, log, domain, settings)
}

func newProvider(records zoneRecords, log logr.Logger, domain string, settings map[string]string) (*Provider, error) {
	if domain == "" {
		return nil, fmt.Errorf("cloudflare: %w: empty domain", dns.ErrInvalidSetting)
	}
	ttl, err := dns.TTLSetting("cloudflare", settings)
	if err != nil {
		return nil, err
	}
	comment := settings["comment"]
	if comment == "" {
		comment = defaultComment
	}
	return &Provider{
		records: records,
		domain:  domain,
		ttl:     ttl,
		comment: comment,
		log:     log.WithValues("domain", domain),
	}, nil
}

// GetCurrent returns the single A value Cloudflare holds for the domain.
func (p *Provider) GetCurrent(ctx context.Context) (netip.Addr, error) {
	recs, err := p.records.list(ctx, p.domain)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("cloudflare: list records: %w", err)
	}
	values := make([]string, 0, len(recs))
	for _, r := range recs {
		values = append(values, r.Content)
	}
	return dns.CurrentFromRecordData(values)
}

// UpdateDNSRecord leaves exactly one A record for the domain, pointing at ip.
// A matching record is reused; otherwise a new one is created before stale
// records are removed, so the name never resolves to nothing.
func (p *Provider) UpdateDNSRecord(ctx context.Context, ip netip.Addr) error {
	recs, err := p.records.list(ctx, p.domain)
	if err != nil {
		return fmt.Errorf("cloudflare: list records: %w", err)
	}

	keep := ""
	for _, r := range recs {
		if r.Content == ip.String() {
			keep = r.ID
			break
		}
	}
	if keep == "" {
		if err := p.records.create(ctx, p.domain, ip.String(), p.ttl, p.comment); err != nil {
			return fmt.Errorf("cloudflare: create record: %w", err)
		}
		p.log.Info("record created", "ip", ip.String())
	}

	for _, r := range recs {
		if r.ID == keep {
			continue
		}
		if err := p.records.remove(ctx, r.ID); err != nil {
			return fmt.Errorf("cloudflare: delete stale record %s: %w", r.ID, err)
		}
		p.log.Info("stale record deleted", "id", r.ID, "content", r.Content)
	}
	return nil
}
