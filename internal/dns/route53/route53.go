// Package route53 implements dns.Provider on top of an AWS Route 53 hosted zone.
package route53

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/ddnsd/internal/dns"
)

const defaultRegion = "us-east-1"

func init() {
	factory := func(ctx context.Context, log logr.Logger, domain string, settings map[string]string) (dns.Provider, error) {
		return New(ctx, log, domain, settings)
	}
	dns.Register("aws", factory)
	dns.Register("route53", factory)
}

// API is the subset of the Route 53 client used by Provider.
type API interface {
	TestDNSAnswer(ctx context.Context, params *route53.TestDNSAnswerInput, optFns ...func(*route53.Options)) (*route53.TestDNSAnswerOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

// Provider implements dns.Provider for one record in a Route 53 hosted zone.
type Provider struct {
	client       API
	domain       string
	hostedZoneID string
	ttl          int64
	comment      string
	log          logr.Logger
}

// New creates a Route 53 provider for domain. Credentials and region come
// from the ambient AWS environment.
// Required settings: hosted_zone_id.
// Optional settings: ttl (default 300), region, comment.
func New(ctx context.Context, log logr.Logger, domain string, settings map[string]string) (*Provider, error) {
	p, err := newProvider(log, domain, settings)
	if err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(settings["region"]); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("route53: load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	p.client = route53.NewFromConfig(cfg)
	return p, nil
}

// NewWithClient creates a provider that talks to the given client.
func NewWithClient(client API, log logr.Logger, domain string, settings map[string]string) (*Provider, error) {
	p, err := newProvider(log, domain, settings)
	if err != nil {
		return nil, err
	}
	p.client = client
	return p, nil
}

func newProvider(log logr.Logger, domain string, settings map[string]string) (*Provider, error) {
	if domain == "" {
		return nil, fmt.Errorf("route53: %w: empty domain", dns.ErrInvalidSetting)
	}
	zoneID, err := dns.RequiredSetting("route53", settings, "hosted_zone_id")
	if err != nil {
		return nil, err
	}
	ttl, err := dns.TTLSetting("route53", settings)
	if err != nil {
		return nil, err
	}
	return &Provider{
		domain:       domain,
		hostedZoneID: zoneID,
		ttl:          int64(ttl),
		comment:      settings["comment"],
		log:          log.WithValues("domain", domain, "hostedZoneID", zoneID),
	}, nil
}

// GetCurrent asks Route 53 which A values it answers for the domain.
func (p *Provider) GetCurrent(ctx context.Context) (netip.Addr, error) {
	out, err := p.client.TestDNSAnswer(ctx, &route53.TestDNSAnswerInput{
		HostedZoneId: aws.String(p.hostedZoneID),
		RecordName:   aws.String(p.domain),
		RecordType:   types.RRTypeA,
	})
	if err != nil {
		return netip.Addr{}, fmt.Errorf("route53: test DNS answer: %w", err)
	}
	p.log.V(1).Info("tested DNS answer", "responseCode", aws.ToString(out.ResponseCode), "recordData", out.RecordData)
	return dns.CurrentFromRecordData(out.RecordData)
}

// UpdateDNSRecord submits a single-change batch that UPSERTs the domain's A record.
func (p *Provider) UpdateDNSRecord(ctx context.Context, ip netip.Addr) error {
	batch := &types.ChangeBatch{
		Changes: []types.Change{{
			Action: types.ChangeActionUpsert,
			ResourceRecordSet: &types.ResourceRecordSet{
				Name: aws.String(p.domain),
				Type: types.RRTypeA,
				TTL:  aws.Int64(p.ttl),
				ResourceRecords: []types.ResourceRecord{
					{Value: aws.String(ip.String())},
				},
			},
		}},
	}
	if p.comment != "" {
		batch.Comment = aws.String(p.comment)
	}

	out, err := p.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(p.hostedZoneID),
		ChangeBatch:  batch,
	})
	if err != nil {
		return fmt.Errorf("route53: change resource record sets: %w", err)
	}
	if out.ChangeInfo != nil {
		p.log.Info("record upserted", "ip", ip.String(), "changeID", aws.ToString(out.ChangeInfo.Id), "status", string(out.ChangeInfo.Status))
	}
	return nil
}
