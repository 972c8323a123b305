package opnsense

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns"
)

const providerName = "opnsense"

// Unbound host overrides only support these record types.
var managedTypes = sets.New(string(dns.TypeA), string(dns.TypeAAAA), string(dns.TypeCNAME))

func init() {
	dns.Register(providerName, func(log logr.Logger, settings map[string]string) (dns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Provider for OPNsense Unbound DNS host overrides.
type Provider struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	domainName string
	defaultTTL int64
	client     *http.Client
	log        logr.Logger
}

// New creates an OPNsense DNS provider from the given settings map.
// Required settings: base_url, api_key, api_secret, domain_name.
// Optional settings: default_ttl (default 300), skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL, err := dns.RequiredSetting(providerName, settings, "base_url")
	if err != nil {
		return nil, err
	}
	apiKey, err := dns.RequiredSetting(providerName, settings, "api_key")
	if err != nil {
		return nil, err
	}
	apiSecret, err := dns.RequiredSetting(providerName, settings, "api_secret")
	if err != nil {
		return nil, err
	}
	rawDomain, err := dns.RequiredSetting(providerName, settings, "domain_name")
	if err != nil {
		return nil, err
	}
	domainName, err := dns.ParseDomainName(rawDomain)
	if err != nil {
		return nil, fmt.Errorf("opnsense: %w", err)
	}

	defaultTTL := int64(300)
	if v := settings["default_ttl"]; v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("opnsense: %w: invalid default_ttl %q: %w", dns.ErrConfig, v, err)
		}
		defaultTTL = parsed
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Provider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		domainName: domainName,
		defaultTTL: defaultTTL,
		client:     &http.Client{Transport: transport},
		log:        log,
	}, nil
}

// DomainName returns the managed root domain with a trailing dot.
func (p *Provider) DomainName() string {
	return p.domainName
}

// Qualify returns the host override name for domain, as ListRecords reports it.
func (p *Provider) Qualify(domain string) string {
	return dns.Qualify(domain, p.domainName)
}

// doRequest builds and executes an HTTP request against the OPNsense API.
// Non-200 responses are returned as a dns.ProviderError.
func (p *Provider) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
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
		return nil, dns.TransportError(providerName, fmt.Errorf("%s %s: %w", method, path, err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			respBody = []byte("failed to read error response")
		}
		return nil, dns.APIError(providerName, resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// call performs a request and decodes the JSON response into out.
func (p *Provider) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := p.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &dns.ProviderError{Provider: providerName, Kind: dns.KindAPI, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode %s response: %w", path, err)}
	}
	return nil
}

// reconfigure tells OPNsense to apply DNS changes.
func (p *Provider) reconfigure(ctx context.Context) error {
	var result struct {
		Status string `json:"status"`
	}
	if err := p.call(ctx, http.MethodPost, "unbound/service/reconfigure", struct{}{}, &result); err != nil {
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

func (r hostRow) fqdn() string {
	if r.Hostname == "" {
		return r.Domain
	}
	return r.Hostname + "." + r.Domain
}

// ListRecords returns the host overrides under the managed root domain.
// Unbound returns every override in one response.
func (p *Provider) ListRecords(ctx context.Context) ([]dns.Record, error) {
	var sr searchResponse
	if err := p.call(ctx, http.MethodGet, "unbound/settings/searchHostOverride", nil, &sr); err != nil {
		return nil, err
	}

	records := make([]dns.Record, 0, len(sr.Rows))
	for _, row := range sr.Rows {
		rr := strings.ToUpper(row.RR)
		if !managedTypes.Has(rr) || !dns.WithinDomain(row.fqdn(), p.domainName) {
			continue
		}
		records = append(records, dns.Record{
			Domain:   row.fqdn(),
			Type:     dns.RecordType(rr),
			Value:    row.Server,
			TTL:      p.defaultTTL,
			SourceID: row.UUID,
		})
	}
	return records, nil
}

// ListDisplayRecords lists records and derives their opaque ids.
func (p *Provider) ListDisplayRecords(ctx context.Context, salt string) ([]dns.DisplayRecord, error) {
	return dns.ListDisplay(ctx, p, salt)
}

// buildHostBody creates the JSON body for add/set host override calls.
func buildHostBody(record dns.Record) map[string]any {
	host, domain := dns.SplitHostname(record.Domain)
	return map[string]any{
		"host": map[string]string{
			"enabled":     "1",
			"hostname":    host,
			"domain":      domain,
			"rr":          string(record.Type),
			"server":      record.Value,
			"description": "managed by yk-dyn-ip",
			"mxprio":      "",
			"mx":          "",
		},
	}
}

// UpdateRecord applies action to record and reconfigures Unbound. An upsert
// sets the override addressed by SourceID, or adds a new one.
func (p *Provider) UpdateRecord(ctx context.Context, action dns.Action, record dns.Record) error {
	if err := dns.CheckAction(action, record); err != nil {
		return fmt.Errorf("opnsense: %w", err)
	}
	if record.Domain != "" {
		record.Domain = p.Qualify(record.Domain)
	}

	var err error
	switch {
	case action == dns.ActionDelete:
		err = p.deleteOverride(ctx, record)
	case record.Persisted():
		err = p.setOverride(ctx, record)
	default:
		err = p.addOverride(ctx, record)
	}
	if err != nil {
		return err
	}
	return p.reconfigure(ctx)
}

func (p *Provider) addOverride(ctx context.Context, record dns.Record) error {
	p.log.Info("creating record", "domain", record.Domain, "type", record.Type, "value", record.Value)

	var result struct {
		Result string `json:"result"`
		UUID   string `json:"uuid"`
	}
	if err := p.call(ctx, http.MethodPost, "unbound/settings/addHostOverride", buildHostBody(record), &result); err != nil {
		return err
	}
	if result.Result != "saved" {
		return &dns.ProviderError{Provider: providerName, Kind: dns.KindAPI, Body: "addHostOverride unexpected result: " + result.Result}
	}
	p.log.Info("record created", "uuid", result.UUID)
	return nil
}

func (p *Provider) setOverride(ctx context.Context, record dns.Record) error {
	p.log.Info("updating record", "domain", record.Domain, "type", record.Type, "value", record.Value)

	var result struct {
		Result string `json:"result"`
	}
	if err := p.call(ctx, http.MethodPost, "unbound/settings/setHostOverride/"+record.SourceID, buildHostBody(record), &result); err != nil {
		return err
	}
	if result.Result != "saved" {
		return &dns.ProviderError{Provider: providerName, Kind: dns.KindAPI, Body: "setHostOverride unexpected result: " + result.Result}
	}
	p.log.Info("record updated", "uuid", record.SourceID)
	return nil
}

func (p *Provider) deleteOverride(ctx context.Context, record dns.Record) error {
	p.log.Info("deleting record", "domain", record.Domain, "uuid", record.SourceID)

	var result struct {
		Result string `json:"result"`
	}
	if err := p.call(ctx, http.MethodPost, "unbound/settings/delHostOverride/"+record.SourceID, struct{}{}, &result); err != nil {
		return err
	}
	if result.Result != "deleted" {
		return &dns.ProviderError{Provider: providerName, Kind: dns.KindAPI, Body: "delHostOverride unexpected result: " + result.Result}
	}
	p.log.Info("record deleted", "uuid", record.SourceID)
	return nil
}

// Delete removes the record whose opaque id or domain equals idOrDomain.
func (p *Provider) Delete(ctx context.Context, salt, idOrDomain string) error {
	return dns.DeleteMatching(ctx, p, salt, idOrDomain)
}
