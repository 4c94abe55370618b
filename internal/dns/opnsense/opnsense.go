// Package opnsense implements dns.Provider with Unbound host overrides on an
// OPNsense firewall.
package opnsense

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

const defaultDescription = "managed by ddnsd"

func init() {
	dns.Register("opnsense", func(_ context.Context, log logr.Logger, domain string, settings map[string]string) (dns.Provider, error) {
		return New(log, domain, settings)
	})
}

// Provider implements dns.Provider for one OPNsense Unbound host override.
type Provider struct {
	baseURL     string
	apiKey      string
	apiSecret   string
	host        string
	domain      string
	fqdn        string
	description string
	client      *http.Client
	log         logr.Logger
}

// New creates an OPNsense DNS provider for fqdn from the given settings map.
// Required settings: base_url, api_key, api_secret.
// Optional settings: description, skip_tls_verify (default false).
func New(log logr.Logger, fqdn string, settings map[string]string) (*Provider, error) {
	baseURL, err := dns.RequiredSetting("opnsense", settings, "base_url")
	if err != nil {
		return nil, err
	}
	apiKey, err := dns.RequiredSetting("opnsense", settings, "api_key")
	if err != nil {
		return nil, err
	}
	apiSecret, err := dns.RequiredSetting("opnsense", settings, "api_secret")
	if err != nil {
		return nil, err
	}
	skipVerify, err := dns.BoolSetting("opnsense", settings, "skip_tls_verify")
	if err != nil {
		return nil, err
	}

	host, domain := dns.SplitHostname(fqdn)
	if domain == "" {
		return nil, fmt.Errorf("opnsense: %w: %q is not a fully qualified name", dns.ErrInvalidSetting, fqdn)
	}

	description := settings["description"]
	if description == "" {
		description = defaultDescription
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if skipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Provider{
		baseURL:     baseURL,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		host:        host,
		domain:      domain,
		fqdn:        fqdn,
		description: description,
		client:      &http.Client{Transport: transport},
		log:         log.WithValues("domain", fqdn),
	}, nil
}

// doRequest builds and executes an HTTP request against the OPNsense API.
func (p *Provider) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("opnsense: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := strings.TrimRight(p.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("opnsense: build request: %w", err)
	}

	req.SetBasicAuth(p.apiKey, p.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opnsense: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// post sends body to path and decodes the JSON reply into result.
func (p *Provider) post(ctx context.Context, path string, body, result interface{}) error {
	resp, err := p.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("opnsense: %s returned status %d: %s", path, resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("opnsense: decode %s response: %w", path, err)
	}
	return nil
}

// reconfigure tells OPNsense to apply DNS changes.
func (p *Provider) reconfigure(ctx context.Context) error {
	var result struct {
		Status string `json:"status"`
	}
	if err := p.post(ctx, "unbound/service/reconfigure", struct{}{}, &result); err != nil {
		return fmt.Errorf("opnsense: reconfigure: %w", err)
	}
	p.log.V(1).Info("reconfigure completed", "status", result.Status)
	return nil
}

// searchResponse is the shape returned by searchHostOverride.
type searchResponse struct {
	Rows []hostRow `json:"rows"`
}

// hostRow represents a single host override row from the search response.
type hostRow struct {
	UUID     string `json:"uuid"`
	Enabled  string `json:"enabled"`
	Hostname string `json:"hostname"`
	Domain   string `json:"domain"`
	RR       string `json:"rr"`
	Server   string `json:"server"`
}

// findOverrides returns the enabled A overrides for the provider's name.
func (p *Provider) findOverrides(ctx context.Context) ([]hostRow, error) {
	resp, err := p.doRequest(ctx, http.MethodGet, "unbound/settings/searchHostOverride", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opnsense: searchHostOverride returned status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("opnsense: decode search response: %w", err)
	}

	var rows []hostRow
	for _, row := range sr.Rows {
		if row.Enabled == "0" {
			continue
		}
		if strings.EqualFold(row.Hostname, p.host) &&
			strings.EqualFold(row.Domain, p.domain) &&
			strings.EqualFold(row.RR, dns.RecordTypeA) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// hostBody creates the JSON body for add/set host override calls.
func (p *Provider) hostBody(ip netip.Addr) map[string]interface{} {
	return map[string]interface{}{
		"host": map[string]string{
			"enabled":     "1",
			"hostname":    p.host,
			"domain":      p.domain,
			"rr":          dns.RecordTypeA,
			"server":      ip.String(),
			"description": p.description,
			"mxprio":      "",
			"mx":          "",
		},
	}
}

// GetCurrent returns the address of the domain's host override.
func (p *Provider) GetCurrent(ctx context.Context) (netip.Addr, error) {
	rows, err := p.findOverrides(ctx)
	if err != nil {
		return netip.Addr{}, err
	}
	values := make([]string, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Server)
	}
	return dns.CurrentFromRecordData(values)
}

// UpdateDNSRecord points the domain's host override at ip, creating it when
// missing and removing duplicates. Unbound is only reconfigured on change.
func (p *Provider) UpdateDNSRecord(ctx context.Context, ip netip.Addr) error {
	rows, err := p.findOverrides(ctx)
	if err != nil {
		return fmt.Errorf("opnsense: upsert check: %w", err)
	}
	if len(rows) == 1 && rows[0].Server == ip.String() {
		p.log.V(1).Info("host override already up to date", "uuid", rows[0].UUID)
		return nil
	}

	var result struct {
		Result string `json:"result"`
		UUID   string `json:"uuid"`
	}
	if len(rows) == 0 {
		if err := p.post(ctx, "unbound/settings/addHostOverride", p.hostBody(ip), &result); err != nil {
			return err
		}
		if result.Result != "saved" {
			return fmt.Errorf("opnsense: addHostOverride unexpected result: %s", result.Result)
		}
		p.log.Info("host override created", "uuid", result.UUID, "ip", ip.String())
		return p.reconfigure(ctx)
	}

	keep := rows[0]
	if err := p.post(ctx, "unbound/settings/setHostOverride/"+keep.UUID, p.hostBody(ip), &result); err != nil {
		return err
	}
	if result.Result != "saved" {
		return fmt.Errorf("opnsense: setHostOverride unexpected result: %s", result.Result)
	}
	p.log.Info("host override updated", "uuid", keep.UUID, "ip", ip.String())

	for _, row := range rows[1:] {
		if err := p.post(ctx, "unbound/settings/delHostOverride/"+row.UUID, struct{}{}, &result); err != nil {
			return err
		}
		if result.Result != "deleted" {
			return fmt.Errorf("opnsense: delHostOverride unexpected result: %s", result.Result)
		}
		p.log.Info("duplicate host override deleted", "uuid", row.UUID)
	}
	return p.reconfigure(ctx)
}
