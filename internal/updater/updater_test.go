package updater

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuriy-kovalchuk/yk-dyn-ip/internal/dns"
)

const salt = "test-salt"

// memoryProvider is an in-memory dns.Provider keyed by domain.
type memoryProvider struct {
	mu      sync.Mutex
	records []dns.Record
	nextID  int
	calls   []dns.Action
	failErr error
}

func (m *memoryProvider) DomainName() string { return "example.com." }

func (m *memoryProvider) Qualify(domain string) string { return dns.Qualify(domain, m.DomainName()) }

func (m *memoryProvider) ListRecords(context.Context) ([]dns.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	return append([]dns.Record(nil), m.records...), nil
}

func (m *memoryProvider) ListDisplayRecords(ctx context.Context, salt string) ([]dns.DisplayRecord, error) {
	return dns.ListDisplay(ctx, m, salt)
}

func (m *memoryProvider) UpdateRecord(_ context.Context, action dns.Action, record dns.Record) error {
	if err := dns.CheckAction(action, record); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, action)
	if m.failErr != nil {
		return m.failErr
	}
	for i, r := range m.records {
		if record.Persisted() && r.SourceID == record.SourceID {
			if action == dns.ActionDelete {
				m.records = append(m.records[:i], m.records[i+1:]...)
			} else {
				m.records[i] = record
			}
			return nil
		}
	}
	m.nextID++
	record.Domain = m.Qualify(record.Domain)
	record.SourceID = "src-" + strconv.Itoa(m.nextID)
	m.records = append(m.records, record)
	return nil
}

func (m *memoryProvider) Delete(ctx context.Context, salt, idOrDomain string) error {
	return dns.DeleteMatching(ctx, m, salt, idOrDomain)
}

func newUpdater(records ...dns.Record) (*Updater, *memoryProvider) {
	p := &memoryProvider{records: records}
	return &Updater{DNS: p, Salt: salt, Log: logr.Discard()}, p
}

func TestList(t *testing.T) {
	u, _ := newUpdater(
		dns.Record{Domain: "a.example.com", Type: dns.TypeA, Value: "1.1.1.1", SourceID: "x"},
		dns.Record{Domain: "b.example.com", Type: dns.TypeCNAME, Value: "a.example.com", TTL: 300, SourceID: "y"},
	)

	records, err := u.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, dns.RecordID(salt, "a.example.com"), records[0].ID)
	assert.Equal(t, dns.DefaultTTL, records[0].TTL)
	assert.Equal(t, int64(300), records[1].TTL)
}

func TestCreate_Defaults(t *testing.T) {
	u, p := newUpdater()

	rec, err := u.Create(context.Background(), CreateRequest{Domain: "home.example.com", Value: "203.0.113.7"})
	require.NoError(t, err)

	assert.Equal(t, dns.TypeA, rec.Type)
	assert.Equal(t, dns.DefaultTTL, rec.TTL)
	assert.Equal(t, dns.RecordID(salt, "home.example.com"), rec.ID)
	require.Len(t, p.records, 1)
	assert.Equal(t, "203.0.113.7", p.records[0].Value)
	assert.Equal(t, []dns.Action{dns.ActionUpsert}, p.calls)
}

func TestCreate_ReturnsIDOfStoredName(t *testing.T) {
	u, p := newUpdater()

	created, err := u.Create(context.Background(), CreateRequest{Domain: "www", Value: "203.0.113.7"})
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", created.Domain)
	assert.Equal(t, dns.RecordID(salt, "www.example.com"), created.ID)

	listed, err := u.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, listed[0].ID, created.ID)

	updated, err := u.SetValue(context.Background(), created.ID, "203.0.113.8")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.8", updated.Value)
	assert.Len(t, p.records, 1)
}

func TestCreate_CNAME(t *testing.T) {
	u, p := newUpdater()

	rec, err := u.Create(context.Background(), CreateRequest{Domain: "www.example.com", Type: "cname", Value: "home.example.com", TTL: 120})
	require.NoError(t, err)
	assert.Equal(t, dns.TypeCNAME, rec.Type)
	assert.Equal(t, int64(120), p.records[0].TTL)
}

func TestCreate_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{"unsupported type", CreateRequest{Domain: "a.example.com", Type: dns.TypeMX, Value: "mail"}, dns.ErrUnsupportedRecordType},
		{"txt", CreateRequest{Domain: "a.example.com", Type: dns.TypeTXT, Value: "v=spf1"}, dns.ErrUnsupportedRecordType},
		{"no domain", CreateRequest{Value: "1.1.1.1"}, dns.ErrBuild},
		{"no value", CreateRequest{Domain: "a.example.com"}, dns.ErrBuild},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, p := newUpdater()
			_, err := u.Create(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, p.calls)
		})
	}
}

func TestSetValue(t *testing.T) {
	u, p := newUpdater(dns.Record{Domain: "home.example.com", Type: dns.TypeA, Value: "1.1.1.1", TTL: 120, SourceID: "src-9"})

	rec, err := u.SetValue(context.Background(), dns.RecordID(salt, "home.example.com"), "2.2.2.2")
	require.NoError(t, err)

	assert.Equal(t, "2.2.2.2", rec.Value)
	assert.Equal(t, "src-9", rec.SourceID)
	assert.Equal(t, int64(120), rec.TTL)
	assert.Equal(t, "2.2.2.2", p.records[0].Value)
}

func TestSetValue_NotFound(t *testing.T) {
	u, p := newUpdater(dns.Record{Domain: "home.example.com", Type: dns.TypeA, Value: "1.1.1.1", SourceID: "src-9"})

	// SetValue resolves opaque ids only, not domains.
	_, err := u.SetValue(context.Background(), "home.example.com", "2.2.2.2")
	require.ErrorIs(t, err, dns.ErrRecordNotFound)
	assert.Empty(t, p.calls)
}

func TestSetValue_ProviderError(t *testing.T) {
	u, p := newUpdater()
	p.failErr = dns.APIError("memory", 500, "down")

	_, err := u.SetValue(context.Background(), "whatever", "2.2.2.2")
	require.ErrorIs(t, err, dns.ErrProviderAPI)
}

func TestSync(t *testing.T) {
	u, p := newUpdater(dns.Record{Domain: "home.example.com", Type: dns.TypeA, Value: "1.1.1.1", SourceID: "src-9"})

	t.Run("by domain updates", func(t *testing.T) {
		rec, err := u.Sync(context.Background(), "home.example.com", "3.3.3.3")
		require.NoError(t, err)
		assert.Equal(t, "src-9", rec.SourceID)
		assert.Equal(t, "3.3.3.3", rec.Value)
	})

	t.Run("by id updates", func(t *testing.T) {
		_, err := u.Sync(context.Background(), dns.RecordID(salt, "home.example.com"), "4.4.4.4")
		require.NoError(t, err)
		assert.Len(t, p.records, 1)
		assert.Equal(t, "4.4.4.4", p.records[0].Value)
	})

	t.Run("bare label matches the qualified name", func(t *testing.T) {
		rec, err := u.Sync(context.Background(), "home", "3.3.3.4")
		require.NoError(t, err)
		assert.Equal(t, "src-9", rec.SourceID)
		assert.Len(t, p.records, 1)
	})

	t.Run("unknown domain creates", func(t *testing.T) {
		rec, err := u.Sync(context.Background(), "new.example.com", "5.5.5.5")
		require.NoError(t, err)
		assert.Equal(t, dns.TypeA, rec.Type)
		assert.Len(t, p.records, 2)
	})
}

func TestDelete(t *testing.T) {
	u, p := newUpdater(
		dns.Record{Domain: "a.example.com", Type: dns.TypeA, Value: "1.1.1.1", SourceID: "src-1"},
		dns.Record{Domain: "b.example.com", Type: dns.TypeA, Value: "2.2.2.2", SourceID: "src-2"},
	)

	require.NoError(t, u.Delete(context.Background(), dns.RecordID(salt, "a.example.com")))
	require.NoError(t, u.Delete(context.Background(), "b.example.com"))
	assert.Empty(t, p.records)

	require.ErrorIs(t, u.Delete(context.Background(), "a.example.com"), dns.ErrRecordNotFound)
}

// Two writers targeting the same record both succeed; the provider keeps
// whichever write it applied last.
func TestSetValue_ConcurrentWritesLastWins(t *testing.T) {
	u, p := newUpdater(dns.Record{Domain: "home.example.com", Type: dns.TypeA, Value: "1.1.1.1", SourceID: "src-9"})
	id := dns.RecordID(salt, "home.example.com")

	values := []string{"10.0.0.1", "10.0.0.2"}
	var wg sync.WaitGroup
	errs := make([]error, len(values))
	for i, v := range values {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = u.SetValue(context.Background(), id, v)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, p.records, 1)
	assert.Contains(t, values, p.records[0].Value)
	assert.Len(t, p.calls, 2)
}
