// Package cloudflare implements dns.Provider against the Cloudflare v4 REST API.
package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns"
)

const (
	providerName   = "cloudflare"
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	defaultTimeout = 30 * time.Second

	// unreadableBody replaces an error body that could not be read.
	unreadableBody = "failed to read error response"
)

// managedTypes are the record types kept from a zone listing.
var managedTypes = sets.New(string(dns.TypeA), string(dns.TypeCNAME))

func init() {
	dns.Register(providerName, func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for a single Cloudflare zone.
type Provider struct {
	baseURL    string
	zoneID     string
	domainName string
	apiToken   string
	apiKey     string
	email      string
	client     *http.Client
	log        logr.Logger
}

// New creates a Cloudflare DNS provider from the given settings map.
// Required settings: zone_id, domain_name, and either api_token or
// api_key together with email.
// Optional settings: base_url, timeout (Go duration, default 30s).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	zoneID, err := dns.RequiredSetting(providerName, settings, "zone_id")
	if err != nil {
		return nil, err
	}
	rawDomain, err := dns.RequiredSetting(providerName, settings, "domain_name")
	if err != nil {
		return nil, err
	}
	domainName, err := dns.ParseDomainName(rawDomain)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: %w", err)
	}

	p := &Provider{
		baseURL:    defaultBaseURL,
		zoneID:     zoneID,
		domainName: domainName,
		apiToken:   settings["api_token"],
		apiKey:     settings["api_key"],
		email:      settings["email"],
		log:        log,
	}
	if p.apiToken == "" && (p.apiKey == "" || p.email == "") {
		return nil, fmt.Errorf("cloudflare: %w: either 'api_token' or both 'api_key' and 'email' are required", dns.ErrConfig)
	}
	if v := settings["base_url"]; v != "" {
		p.baseURL = strings.TrimRight(v, "/")
	}

	timeout := defaultTimeout
	if v := settings["timeout"]; v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("cloudflare: %w: invalid timeout %q: %w", dns.ErrConfig, v, err)
		}
	}
	p.client = &http.Client{Timeout: timeout}

	return p, nil
}

// DomainName returns the managed root domain with a trailing dot.
func (p *Provider) DomainName() string {
	return p.domainName
}

// Qualify returns the name Cloudflare stores for domain: lower case, no
// trailing dot, under the zone's root.
func (p *Provider) Qualify(domain string) string {
	return dns.Qualify(domain, p.domainName)
}

// doRequest builds and executes an HTTP request against the Cloudflare API.
// Any non-2xx response is returned as a dns.ProviderError carrying the body.
func (p *Provider) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cloudflare: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: build request: %w", err)
	}
	if p.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiToken)
	} else {
		req.Header.Set("X-Auth-Key", p.apiKey)
		req.Header.Set("X-Auth-Email", p.email)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, dns.TransportError(providerName, fmt.Errorf("%s %s: %w", method, path, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, dns.APIError(providerName, resp.StatusCode, readBody(resp.Body))
	}
	return resp, nil
}

func readBody(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil {
		return unreadableBody
	}
	return string(data)
}

// decode reads a success response into v and checks the envelope's success flag.
func decode(resp *http.Response, v any, success func() bool) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return dns.TransportError(providerName, fmt.Errorf("read response: %w", err))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &dns.ProviderError{
			Provider:   providerName,
			Kind:       dns.KindAPI,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	if !success() {
		return dns.APIError(providerName, resp.StatusCode, string(data))
	}
	return nil
}

func (p *Provider) recordsPath() string {
	return "/zones/" + url.PathEscape(p.zoneID) + "/dns_records"
}

func (p *Provider) recordPath(id string) string {
	return p.recordsPath() + "/" + url.PathEscape(id)
}

// ListRecords fetches every A and CNAME record in the zone.
//
// Pages are requested from 1 upwards until a page contributes no A or CNAME
// records. The result_info totals in the envelope are not consulted, so a
// page made up only of other record types ends the listing early.
func (p *Provider) ListRecords(ctx context.Context) ([]dns.Record, error) {
	var all []dns.Record
	for page := 1; ; page++ {
		records, err := p.fetchRecordsPage(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			break
		}
		all = append(all, records...)
	}
	return all, nil
}

func (p *Provider) fetchRecordsPage(ctx context.Context, page int) ([]dns.Record, error) {
	p.log.V(1).Info("fetching records page", "page", page)

	resp, err := p.doRequest(ctx, http.MethodGet, p.recordsPath()+"?page="+strconv.Itoa(page), nil)
	if err != nil {
		return nil, err
	}

	var list cf.DNSListResponse
	if err := decode(resp, &list, func() bool { return list.Success }); err != nil {
		return nil, err
	}

	records := make([]dns.Record, 0, len(list.Result))
	for _, r := range list.Result {
		if !managedTypes.Has(r.Type) {
			continue
		}
		records = append(records, fromCloudflare(r))
	}
	p.log.V(1).Info("retrieved records", "page", page, "count", len(records))
	return records, nil
}

func fromCloudflare(r cf.DNSRecord) dns.Record {
	return dns.Record{
		Domain:   r.Name,
		Type:     dns.RecordType(r.Type),
		Value:    r.Content,
		TTL:      int64(r.TTL),
		SourceID: r.ID,
	}
}

// ListDisplayRecords lists records and derives their opaque ids.
func (p *Provider) ListDisplayRecords(ctx context.Context, salt string) ([]dns.DisplayRecord, error) {
	return dns.ListDisplay(ctx, p, salt)
}

// recordBody is the request body for record create and patch calls.
type recordBody struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int64  `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

func buildRecordBody(record dns.Record) recordBody {
	return recordBody{
		Type:    string(record.Type),
		Name:    record.Domain,
		Content: record.Value,
		TTL:     record.EffectiveTTL(),
		Proxied: false,
	}
}

// UpdateRecord applies action to record. An upsert patches the record when
// it carries a SourceID and creates it otherwise.
func (p *Provider) UpdateRecord(ctx context.Context, action dns.Action, record dns.Record) error {
	if err := dns.CheckAction(action, record); err != nil {
		return fmt.Errorf("cloudflare: %w", err)
	}
	if action == dns.ActionDelete {
		return p.deleteRecord(ctx, record)
	}
	if record.Domain != "" {
		record.Domain = p.Qualify(record.Domain)
	}
	if record.Persisted() {
		return p.patchRecord(ctx, record)
	}
	return p.createRecord(ctx, record)
}

func (p *Provider) createRecord(ctx context.Context, record dns.Record) error {
	p.log.Info("creating record", "domain", record.Domain, "type", record.Type, "value", record.Value, "ttl", record.EffectiveTTL())

	resp, err := p.doRequest(ctx, http.MethodPost, p.recordsPath(), buildRecordBody(record))
	if err != nil {
		return err
	}
	var result cf.DNSRecordResponse
	if err := decode(resp, &result, func() bool { return result.Success }); err != nil {
		return err
	}
	p.log.Info("record created", "sourceID", result.Result.ID)
	return nil
}

func (p *Provider) patchRecord(ctx context.Context, record dns.Record) error {
	p.log.Info("updating record", "domain", record.Domain, "type", record.Type, "value", record.Value, "ttl", record.EffectiveTTL())

	resp, err := p.doRequest(ctx, http.MethodPatch, p.recordPath(record.SourceID), buildRecordBody(record))
	if err != nil {
		return err
	}
	var result cf.DNSRecordResponse
	if err := decode(resp, &result, func() bool { return result.Success }); err != nil {
		return err
	}
	p.log.Info("record updated", "sourceID", record.SourceID)
	return nil
}

func (p *Provider) deleteRecord(ctx context.Context, record dns.Record) error {
	p.log.Info("deleting record", "domain", record.Domain, "sourceID", record.SourceID)

	resp, err := p.doRequest(ctx, http.MethodDelete, p.recordPath(record.SourceID), nil)
	if err != nil {
		return err
	}
	var result cf.DNSRecordResponse
	if err := decode(resp, &result, func() bool { return result.Success }); err != nil {
		return err
	}
	p.log.Info("record deleted", "sourceID", record.SourceID)
	return nil
}

// Delete removes the record whose opaque id or domain equals idOrDomain.
func (p *Provider) Delete(ctx context.Context, salt, idOrDomain string) error {
	return dns.DeleteMatching(ctx, p, salt, idOrDomain)
}
