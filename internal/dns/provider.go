package dns

import (
	"context"
	"fmt"
)

// Action is the kind of change UpdateRecord applies.
type Action string

const (
	// ActionUpsert creates the record or replaces its current value.
	ActionUpsert Action = "UPSERT"
	// ActionDelete removes the record identified by its SourceID.
	ActionDelete Action = "DELETE"
)

// Provider is the interface that DNS backends must implement. Implementations
// hold only immutable configuration and are safe for concurrent use.
type Provider interface {
	// DomainName is the root domain this provider manages, with a trailing dot.
	DomainName() string
	// Qualify returns the name under which UpdateRecord stores a new record
	// for domain. Opaque ids of created records derive from it.
	Qualify(domain string) string
	// ListRecords returns every managed record, fully paginated. A failure on
	// any page fails the whole listing.
	ListRecords(ctx context.Context) ([]Record, error)
	// ListDisplayRecords is ListRecords projected with RecordID, in the same order.
	ListDisplayRecords(ctx context.Context, salt string) ([]DisplayRecord, error)
	// UpdateRecord applies an upsert or delete for a single record.
	UpdateRecord(ctx context.Context, action Action, record Record) error
	// Delete removes the record whose opaque id or domain equals idOrDomain.
	Delete(ctx context.Context, salt, idOrDomain string) error
}

// Lister is the listing half of Provider.
type Lister interface {
	ListRecords(ctx context.Context) ([]Record, error)
}

// ListDisplay lists records from l and projects them for display.
func ListDisplay(ctx context.Context, l Lister, salt string) ([]DisplayRecord, error) {
	records, err := l.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	return DisplayRecords(records, salt), nil
}

// DeleteMatching resolves idOrDomain against the current listing of p and
// deletes the match.
func DeleteMatching(ctx context.Context, p Provider, salt, idOrDomain string) error {
	records, err := p.ListDisplayRecords(ctx, salt)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}
	rec, err := FindDisplayRecord(records, idOrDomain)
	if err != nil {
		return err
	}
	return p.UpdateRecord(ctx, ActionDelete, rec.Record())
}

// CheckAction validates action and, for deletes, the presence of a SourceID.
func CheckAction(action Action, record Record) error {
	switch action {
	case ActionUpsert:
		return nil
	case ActionDelete:
		if !record.Persisted() {
			return fmt.Errorf("%w: cannot delete %s", ErrMissingIdentifier, record.Domain)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
}
