// Package route53 implements dns.Provider on top of an AWS Route53 hosted zone.
package route53

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns"
)

const providerName = "route53"

func init() {
	dns.Register(providerName, func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		client, err := NewClient(context.Background(), settings)
		if err != nil {
			return nil, err
		}
		return New(log, client, settings["hosted_zone_id"], settings["domain_name"])
	})
}

// API is the subset of the Route53 client used by Provider.
type API interface {
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

// NewClient builds a Route53 client from provider settings.
// Optional settings: region, access_key_id + secret_access_key (otherwise the
// default AWS credential chain is used), endpoint.
// The client never retries; a failed call is reported to the caller.
func NewClient(ctx context.Context, settings map[string]string) (*route53.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if region := settings["region"]; region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	keyID, secret := settings["access_key_id"], settings["secret_access_key"]
	switch {
	case keyID != "" && secret != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, settings["session_token"]),
		))
	case keyID != "" || secret != "":
		return nil, fmt.Errorf("route53: %w: 'access_key_id' and 'secret_access_key' must be set together", dns.ErrConfig)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("route53: %w: load AWS config: %w", dns.ErrConfig, err)
	}

	endpoint := settings["endpoint"]
	return route53.NewFromConfig(cfg, func(o *route53.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// Provider implements dns.Provider for a single Route53 hosted zone.
type Provider struct {
	client       API
	hostedZoneID string
	domainName   string
	log          logr.Logger
}

// New creates a Route53 provider. domainName must be a well-formed domain
// name; it is stored with a trailing dot.
func New(log logr.Logger, client API, hostedZoneID, domainName string) (*Provider, error) {
	if hostedZoneID == "" {
		return nil, fmt.Errorf("route53: %w: missing required setting 'hosted_zone_id'", dns.ErrConfig)
	}
	if domainName == "" {
		return nil, fmt.Errorf("route53: %w: missing required setting 'domain_name'", dns.ErrConfig)
	}
	parsed, err := dns.ParseDomainName(domainName)
	if err != nil {
		return nil, fmt.Errorf("route53: %w", err)
	}
	return &Provider{
		client:       client,
		hostedZoneID: hostedZoneID,
		domainName:   parsed,
		log:          log,
	}, nil
}

// DomainName returns the managed root domain with a trailing dot.
func (p *Provider) DomainName() string {
	return p.domainName
}

// ListRecords walks the hosted zone with the Route53 continuation cursor.
// The record set named exactly like the root domain is not managed and is
// left out, as are alias sets and types outside dns.RecordType.
func (p *Provider) ListRecords(ctx context.Context) ([]dns.Record, error) {
	var result []dns.Record
	input := &route53.ListResourceRecordSetsInput{HostedZoneId: aws.String(p.hostedZoneID)}
	for page := 1; ; page++ {
		p.log.V(1).Info("fetching record sets", "page", page)
		out, err := p.client.ListResourceRecordSets(ctx, input)
		if err != nil {
			return nil, classify(err)
		}
		for _, rrs := range out.ResourceRecordSets {
			if !p.managed(rrs) {
				continue
			}
			result = append(result, fromRecordSet(rrs))
		}
		if !out.IsTruncated {
			break
		}
		input = &route53.ListResourceRecordSetsInput{
			HostedZoneId:          aws.String(p.hostedZoneID),
			StartRecordName:       out.NextRecordName,
			StartRecordType:       out.NextRecordType,
			StartRecordIdentifier: out.NextRecordIdentifier,
		}
	}
	return result, nil
}

func (p *Provider) managed(rrs types.ResourceRecordSet) bool {
	if aws.ToString(rrs.Name) == p.domainName || rrs.AliasTarget != nil || len(rrs.ResourceRecords) == 0 {
		return false
	}
	_, err := dns.ParseRecordType(string(rrs.Type))
	return err == nil
}

func fromRecordSet(rrs types.ResourceRecordSet) dns.Record {
	rec := dns.Record{
		Domain:   aws.ToString(rrs.Name),
		Type:     dns.RecordType(rrs.Type),
		Value:    aws.ToString(rrs.ResourceRecords[0].Value),
		TTL:      dns.DefaultTTL,
		SourceID: sourceID(rrs),
	}
	if rrs.TTL != nil {
		rec.TTL = *rrs.TTL
	}
	return rec
}

// sourceID identifies a record set within the zone. Route53 has no record
// ids; name and type (plus the set identifier for routing policies) are
// unique.
func sourceID(rrs types.ResourceRecordSet) string {
	id := aws.ToString(rrs.Name) + "/" + string(rrs.Type)
	if rrs.SetIdentifier != nil {
		id += "/" + *rrs.SetIdentifier
	}
	return id
}

// fetchRecordSet returns the current record set addressed by id, a value
// produced by sourceID.
func (p *Provider) fetchRecordSet(ctx context.Context, id string) (types.ResourceRecordSet, error) {
	name, rest, _ := strings.Cut(id, "/")
	rrType, setID, _ := strings.Cut(rest, "/")
	input := &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(p.hostedZoneID),
		StartRecordName: aws.String(name),
		StartRecordType: types.RRType(rrType),
		MaxItems:        aws.Int32(1),
	}
	if setID != "" {
		input.StartRecordIdentifier = aws.String(setID)
	}
	out, err := p.client.ListResourceRecordSets(ctx, input)
	if err != nil {
		return types.ResourceRecordSet{}, classify(err)
	}
	for _, rrs := range out.ResourceRecordSets {
		if sourceID(rrs) == id {
			return rrs, nil
		}
	}
	return types.ResourceRecordSet{}, fmt.Errorf("%w: record set %s", dns.ErrRecordNotFound, id)
}

// ListDisplayRecords lists records and derives their opaque ids.
func (p *Provider) ListDisplayRecords(ctx context.Context, salt string) ([]dns.DisplayRecord, error) {
	return dns.ListDisplay(ctx, p, salt)
}

// Qualify appends the root domain to names outside it. The comparison is a
// plain suffix match, except that a name lacking only the trailing dot is
// completed with the dot instead of being suffixed a second time.
func (p *Provider) Qualify(domain string) string {
	switch {
	case strings.HasSuffix(domain, p.domainName):
		return domain
	case strings.HasSuffix(domain+".", p.domainName):
		return domain + "."
	}
	return domain + "." + p.domainName
}

// buildChange validates a new record and turns it into a single UPSERT.
func buildChange(record dns.Record) (types.Change, error) {
	rrType := types.RRType(record.Type)
	switch {
	case record.Domain == "":
		return types.Change{}, fmt.Errorf("%w: record has no domain", dns.ErrBuild)
	case record.Value == "":
		return types.Change{}, fmt.Errorf("%w: record %s has no value", dns.ErrBuild, record.Domain)
	case !slices.Contains(rrType.Values(), rrType):
		return types.Change{}, fmt.Errorf("%w: record %s has unknown type %q", dns.ErrBuild, record.Domain, record.Type)
	}
	return types.Change{
		Action: types.ChangeActionUpsert,
		ResourceRecordSet: &types.ResourceRecordSet{
			Name:            aws.String(record.Domain),
			Type:            rrType,
			TTL:             aws.Int64(record.EffectiveTTL()),
			ResourceRecords: []types.ResourceRecord{{Value: aws.String(record.Value)}},
		},
	}, nil
}

// changeFor builds the change for action. Deletes and updates of existing
// records start from the record set as Route53 currently holds it, since
// DELETE must match it exactly and UPSERT replaces it whole.
func (p *Provider) changeFor(ctx context.Context, action dns.Action, record dns.Record) (types.Change, error) {
	if !record.Persisted() {
		if record.Domain != "" {
			record.Domain = p.Qualify(record.Domain)
		}
		return buildChange(record)
	}
	if action == dns.ActionUpsert && record.Value == "" {
		return types.Change{}, fmt.Errorf("%w: record %s has no value", dns.ErrBuild, record.Domain)
	}

	rrs, err := p.fetchRecordSet(ctx, record.SourceID)
	if err != nil {
		return types.Change{}, err
	}
	if action == dns.ActionDelete {
		return types.Change{Action: types.ChangeActionDelete, ResourceRecordSet: &rrs}, nil
	}
	if rrs.AliasTarget != nil {
		return types.Change{}, fmt.Errorf("%w: %s is an alias record set", dns.ErrBuild, record.SourceID)
	}
	rrs.TTL = aws.Int64(record.EffectiveTTL())
	rrs.ResourceRecords = []types.ResourceRecord{{Value: aws.String(record.Value)}}
	return types.Change{Action: types.ChangeActionUpsert, ResourceRecordSet: &rrs}, nil
}

// UpdateRecord submits one upsert or delete change for record as a
// single-change batch.
func (p *Provider) UpdateRecord(ctx context.Context, action dns.Action, record dns.Record) error {
	if err := dns.CheckAction(action, record); err != nil {
		return fmt.Errorf("route53: %w", err)
	}
	p.log.Info("updating record", "action", action, "domain", record.Domain, "type", record.Type, "value", record.Value)

	change, err := p.changeFor(ctx, action, record)
	if err != nil {
		return fmt.Errorf("route53: %w", err)
	}

	out, err := p.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(p.hostedZoneID),
		ChangeBatch:  &types.ChangeBatch{Changes: []types.Change{change}},
	})
	if err != nil {
		return classify(err)
	}
	if out != nil && out.ChangeInfo != nil {
		p.log.V(1).Info("change submitted", "changeID", aws.ToString(out.ChangeInfo.Id), "status", out.ChangeInfo.Status)
	}
	return nil
}

// Delete removes the record whose opaque id or domain equals idOrDomain.
func (p *Provider) Delete(ctx context.Context, salt, idOrDomain string) error {
	return dns.DeleteMatching(ctx, p, salt, idOrDomain)
}

// classify maps an SDK error onto the provider error kinds.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return dns.TransportError(providerName, err)
	}
	perr := &dns.ProviderError{
		Provider: providerName,
		Kind:     dns.KindAPI,
		Code:     apiErr.ErrorCode(),
		Body:     apiErr.ErrorMessage(),
		Err:      err,
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		perr.StatusCode = respErr.HTTPStatusCode()
	}
	return perr
}
