// Package digitalocean implements dns.Provider for domains hosted on DigitalOcean DNS.
package digitalocean

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/digitalocean/godo"
	"github.com/go-logr/logr"
	"golang.org/x/oauth2"

	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

const recordsPerPage = 200

func init() {
	dns.Register("digitalocean", func(ctx context.Context, log logr.Logger, domain string, settings map[string]string) (dns.Provider, error) {
		return New(ctx, log, domain, settings)
	})
}

// Provider implements dns.Provider for one record of a DigitalOcean domain.
type Provider struct {
	domains godo.DomainsService
	zone    string
	name    string
	domain  string
	ttl     int
	log     logr.Logger
}

// New creates a DigitalOcean provider for domain.
// Required settings: zone (the DigitalOcean domain owning the record), api_token.
// Optional settings: ttl (default 300).
func New(ctx context.Context, log logr.Logger, domain string, settings map[string]string) (*Provider, error) {
	token, err := dns.RequiredSetting("digitalocean", settings, "api_token")
	if err != nil {
		return nil, err
	}
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := godo.NewClient(oauth2.NewClient(ctx, tokenSource))
	return NewWithService(client.Domains, log, domain, settings)
}

// NewWithService creates a provider that talks to the given domains service.
func NewWithService(domains godo.DomainsService, log logr.Logger, domain string, settings map[string]string) (*Provider, error) {
	zone, err := dns.RequiredSetting("digitalocean", settings, "zone")
	if err != nil {
		return nil, err
	}
	name, ok := dns.RelativeName(domain, zone)
	if !ok {
		return nil, fmt.Errorf("digitalocean: %w: domain %q is not inside zone %q", dns.ErrInvalidSetting, domain, zone)
	}
	ttl, err := dns.TTLSetting("digitalocean", settings)
	if err != nil {
		return nil, err
	}
	return &Provider{
		domains: domains,
		zone:    zone,
		name:    name,
		domain:  domain,
		ttl:     ttl,
		log:     log.WithValues("domain", domain, "zone", zone),
	}, nil
}

// aRecords returns every A record of the zone carrying the provider's name.
func (p *Provider) aRecords(ctx context.Context) ([]godo.DomainRecord, error) {
	var out []godo.DomainRecord
	opt := &godo.ListOptions{PerPage: recordsPerPage}
	for {
		records, res, err := p.domains.Records(ctx, p.zone, opt)
		if err != nil {
			return nil, fmt.Errorf("digitalocean: list records: %w", err)
		}
		for _, r := range records {
			if r.Type == dns.RecordTypeA && r.Name == p.name {
				out = append(out, r)
			}
		}
		if res == nil || res.Links == nil || res.Links.IsLastPage() {
			return out, nil
		}
		page, err := res.Links.CurrentPage()
		if err != nil {
			return nil, fmt.Errorf("digitalocean: read page links: %w", err)
		}
		opt.Page = page + 1
	}
}

// GetCurrent returns the single A value published for the domain.
func (p *Provider) GetCurrent(ctx context.Context) (netip.Addr, error) {
	records, err := p.aRecords(ctx)
	if err != nil {
		return netip.Addr{}, err
	}
	values := make([]string, 0, len(records))
	for _, r := range records {
		values = append(values, r.Data)
	}
	return dns.CurrentFromRecordData(values)
}

// UpdateDNSRecord makes the domain resolve to ip through exactly one A record.
func (p *Provider) UpdateDNSRecord(ctx context.Context, ip netip.Addr) error {
	records, err := p.aRecords(ctx)
	if err != nil {
		return err
	}
	req := &godo.DomainRecordEditRequest{
		Type: dns.RecordTypeA,
		Name: p.name,
		Data: ip.String(),
		TTL:  p.ttl,
	}

	if len(records) == 0 {
		if _, _, err := p.domains.CreateRecord(ctx, p.zone, req); err != nil {
			return fmt.Errorf("digitalocean: create record: %w", err)
		}
		p.log.Info("record created", "ip", ip.String())
		return nil
	}

	keep := -1
	for i, r := range records {
		if r.Data == ip.String() {
			keep = i
			break
		}
	}
	if keep < 0 {
		keep = 0
		if _, _, err := p.domains.EditRecord(ctx, p.zone, records[0].ID, req); err != nil {
			return fmt.Errorf("digitalocean: edit record %d: %w", records[0].ID, err)
		}
		p.log.Info("record updated", "id", records[0].ID, "ip", ip.String())
	}

	for i, r := range records {
		if i == keep {
			continue
		}
		if _, err := p.domains.DeleteRecord(ctx, p.zone, r.ID); err != nil {
			return fmt.Errorf("digitalocean: delete stale record %d: %w", r.ID, err)
		}
		p.log.Info("stale record deleted", "id", r.ID, "data", r.Data)
	}
	return nil
}
