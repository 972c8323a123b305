package dns

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/samber/lo"
)

// DefaultTTL is applied to records that do not carry an explicit TTL.
const DefaultTTL int64 = 60

// RecordType is the DNS resource record type of a Record.
type RecordType string

const (
	TypeA     RecordType = "A"
	TypeAAAA  RecordType = "AAAA"
	TypeCNAME RecordType = "CNAME"
	TypeMX    RecordType = "MX"
	TypeTXT   RecordType = "TXT"
)

// ParseRecordType returns the RecordType named by s.
func ParseRecordType(s string) (RecordType, error) {
	switch t := RecordType(s); t {
	case TypeA, TypeAAAA, TypeCNAME, TypeMX, TypeTXT:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedRecordType, s)
}

// Record is the provider-agnostic representation of a managed DNS entry.
type Record struct {
	Domain string     // FQDN, e.g. "home.example.com."
	Type   RecordType // A, AAAA, CNAME, MX or TXT
	Value  string     // IP address or target
	TTL    int64      // 0 = DefaultTTL

	// SourceID is the provider-native identifier. It is empty until the
	// record has been created at the provider.
	SourceID string
}

// EffectiveTTL returns the record TTL, falling back to DefaultTTL.
func (r Record) EffectiveTTL() int64 {
	if r.TTL <= 0 {
		return DefaultTTL
	}
	return r.TTL
}

// Persisted reports whether the record carries a provider-native identifier.
func (r Record) Persisted() bool {
	return r.SourceID != ""
}

// ForDisplay projects the record for external callers.
func (r Record) ForDisplay(salt string) DisplayRecord {
	return DisplayRecord{
		ID:       RecordID(salt, r.Domain),
		Domain:   r.Domain,
		Type:     r.Type,
		Value:    r.Value,
		TTL:      r.EffectiveTTL(),
		SourceID: r.SourceID,
	}
}

// DisplayRecord is the externally visible projection of a Record. Callers
// look records up by ID or Domain; SourceID is only used to address the
// provider.
type DisplayRecord struct {
	ID       string     `json:"id"`
	Domain   string     `json:"domain"`
	Type     RecordType `json:"record_type"`
	Value    string     `json:"value"`
	TTL      int64      `json:"ttl"`
	SourceID string     `json:"source_id"`
}

// Record converts the display projection back into a Record.
func (d DisplayRecord) Record() Record {
	return Record{
		Domain:   d.Domain,
		Type:     d.Type,
		Value:    d.Value,
		TTL:      d.TTL,
		SourceID: d.SourceID,
	}
}

// RecordID derives the opaque identifier shown to callers for a domain.
//
// It is hex(MD5(salt + domain)). MD5 is used as a stable fingerprint that
// hides the provider's own ids from casual observers; it is not collision
// resistant and must not be relied on for security. Changing the hash would
// invalidate every id already handed out.
func RecordID(salt, domain string) string {
	sum := md5.Sum([]byte(salt + domain))
	return hex.EncodeToString(sum[:])
}

// DisplayRecords projects records for display, preserving order.
func DisplayRecords(records []Record, salt string) []DisplayRecord {
	return lo.Map(records, func(r Record, _ int) DisplayRecord {
		return r.ForDisplay(salt)
	})
}

// FindDisplayRecord returns the first record whose opaque id or literal
// domain equals idOrDomain.
func FindDisplayRecord(records []DisplayRecord, idOrDomain string) (DisplayRecord, error) {
	rec, ok := lo.Find(records, func(r DisplayRecord) bool {
		return r.ID == idOrDomain || r.Domain == idOrDomain
	})
	if !ok {
		return DisplayRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, idOrDomain)
	}
	return rec, nil
}
