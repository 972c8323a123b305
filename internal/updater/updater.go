// Package updater turns caller requests into provider record changes.
package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/samber/lo"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns"
)

// creatableTypes are the record types callers may create.
var creatableTypes = []dns.RecordType{dns.TypeA, dns.TypeCNAME}

// Updater resolves opaque ids against the provider listing and applies
// changes. It keeps no state between calls; concurrent writes to the same
// record race at the provider and the last one wins.
type Updater struct {
	DNS  dns.Provider
	Salt string
	Log  logr.Logger
}

// CreateRequest describes a record to create.
type CreateRequest struct {
	Domain string         `json:"domain"`
	Type   dns.RecordType `json:"record_type"`
	Value  string         `json:"value"`
	TTL    int64          `json:"ttl"`
}

// List returns every managed record with its opaque id.
func (u *Updater) List(ctx context.Context) ([]dns.DisplayRecord, error) {
	return u.DNS.ListDisplayRecords(ctx, u.Salt)
}

// Create upserts a new record. Type defaults to A and TTL to dns.DefaultTTL;
// only A and CNAME records can be created. The returned record carries the
// name the provider stores, so its id matches later listings.
func (u *Updater) Create(ctx context.Context, req CreateRequest) (dns.DisplayRecord, error) {
	rec, err := u.newRecord(req)
	if err != nil {
		return dns.DisplayRecord{}, err
	}
	rec.Domain = u.DNS.Qualify(rec.Domain)
	u.Log.Info("creating record", "domain", rec.Domain, "type", rec.Type, "value", rec.Value)
	if err := u.DNS.UpdateRecord(ctx, dns.ActionUpsert, rec); err != nil {
		return dns.DisplayRecord{}, fmt.Errorf("creating %s: %w", rec.Domain, err)
	}
	return rec.ForDisplay(u.Salt), nil
}

func (u *Updater) newRecord(req CreateRequest) (dns.Record, error) {
	domain := strings.TrimSpace(req.Domain)
	if domain == "" {
		return dns.Record{}, fmt.Errorf("%w: record has no domain", dns.ErrBuild)
	}
	value := strings.TrimSpace(req.Value)
	if value == "" {
		return dns.Record{}, fmt.Errorf("%w: record %s has no value", dns.ErrBuild, domain)
	}
	typ := lo.Ternary(req.Type == "", dns.TypeA, dns.RecordType(strings.ToUpper(string(req.Type))))
	if !lo.Contains(creatableTypes, typ) {
		return dns.Record{}, fmt.Errorf("%w: %q (allowed: %v)", dns.ErrUnsupportedRecordType, req.Type, creatableTypes)
	}
	return dns.Record{
		Domain: domain,
		Type:   typ,
		Value:  value,
		TTL:    lo.Ternary(req.TTL > 0, req.TTL, dns.DefaultTTL),
	}, nil
}

// SetValue points the record with the given opaque id at value and returns
// the updated record.
func (u *Updater) SetValue(ctx context.Context, id, value string) (dns.DisplayRecord, error) {
	records, err := u.List(ctx)
	if err != nil {
		return dns.DisplayRecord{}, err
	}
	current, ok := lo.Find(records, func(r dns.DisplayRecord) bool { return r.ID == id })
	if !ok {
		return dns.DisplayRecord{}, fmt.Errorf("%w: %s", dns.ErrRecordNotFound, id)
	}
	return u.apply(ctx, current, value)
}

// Sync updates the record matching idOrDomain, or its qualified name, and
// creates an A record for idOrDomain when neither matches.
func (u *Updater) Sync(ctx context.Context, idOrDomain, value string) (dns.DisplayRecord, error) {
	records, err := u.List(ctx)
	if err != nil {
		return dns.DisplayRecord{}, err
	}
	current, err := dns.FindDisplayRecord(records, idOrDomain)
	if errors.Is(err, dns.ErrRecordNotFound) {
		current, err = dns.FindDisplayRecord(records, u.DNS.Qualify(idOrDomain))
	}
	if errors.Is(err, dns.ErrRecordNotFound) {
		return u.Create(ctx, CreateRequest{Domain: idOrDomain, Type: dns.TypeA, Value: value})
	}
	if err != nil {
		return dns.DisplayRecord{}, err
	}
	return u.apply(ctx, current, value)
}

func (u *Updater) apply(ctx context.Context, current dns.DisplayRecord, value string) (dns.DisplayRecord, error) {
	if value == "" {
		return dns.DisplayRecord{}, fmt.Errorf("%w: record %s has no value", dns.ErrBuild, current.Domain)
	}
	rec := current.Record()
	u.Log.Info("updating record", "domain", rec.Domain, "old", rec.Value, "new", value)
	rec.Value = value
	if err := u.DNS.UpdateRecord(ctx, dns.ActionUpsert, rec); err != nil {
		return dns.DisplayRecord{}, fmt.Errorf("updating %s: %w", rec.Domain, err)
	}
	return rec.ForDisplay(u.Salt), nil
}

// Delete removes the record whose opaque id or domain equals idOrDomain.
func (u *Updater) Delete(ctx context.Context, idOrDomain string) error {
	u.Log.Info("deleting record", "record", idOrDomain)
	return u.DNS.Delete(ctx, u.Salt, idOrDomain)
}
