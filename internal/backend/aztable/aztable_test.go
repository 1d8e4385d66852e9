package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend/backendtest"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTable evaluates the small OData subset buildFilter produces:
// clauses joined by " and ", each "<field> <eq|gt> <'string'|123L>".
type fakeTable struct {
	mu       sync.Mutex
	rows     map[string]aztables.EDMEntity
	filters  []string
	selects  []string
	failList error
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[string]aztables.EDMEntity{}}
}

func rowID(pk, rk string) string { return pk + "\x00" + rk }

func (f *fakeTable) ListEntities(_ context.Context, filter, selectFields string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	f.selects = append(f.selects, selectFields)
	if f.failList != nil {
		return nil, f.failList
	}

	ids := make([]string, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out [][]byte
	for _, id := range ids {
		e := f.rows[id]
		ok, err := evalFilter(e, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if selectFields == keysOnlySelect {
			e = aztables.EDMEntity{Entity: e.Entity}
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (f *fakeTable) UpsertEntity(_ context.Context, entity []byte) error {
	var e aztables.EDMEntity
	if err := json.Unmarshal(entity, &e); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rowID(e.PartitionKey, e.RowKey)] = e
	return nil
}

func (f *fakeTable) DeleteEntity(_ context.Context, pk, rk string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, rowID(pk, rk))
	return nil
}

func evalFilter(e aztables.EDMEntity, filter string) (bool, error) {
	for _, clause := range strings.Split(filter, " and ") {
		parts := strings.SplitN(clause, " ", 3)
		if len(parts) != 3 {
			return false, fmt.Errorf("bad clause %q", clause)
		}
		field, op, lit := parts[0], parts[1], parts[2]

		var actual any
		switch field {
		case "PartitionKey":
			actual = e.PartitionKey
		case "RowKey":
			actual = e.RowKey
		default:
			actual = e.Properties[field]
		}

		var cmp int
		switch {
		case strings.HasPrefix(lit, "'"):
			want := strings.ReplaceAll(strings.Trim(lit, "'"), "''", "'")
			s, ok := actual.(string)
			if !ok {
				return false, nil
			}
			cmp = strings.Compare(s, want)
		case strings.HasSuffix(lit, "L"):
			want, err := strconv.ParseInt(strings.TrimSuffix(lit, "L"), 10, 64)
			if err != nil {
				return false, err
			}
			n, ok := actual.(aztables.EDMInt64)
			if !ok {
				return false, nil
			}
			switch {
			case int64(n) < want:
				cmp = -1
			case int64(n) > want:
				cmp = 1
			}
		default:
			return false, fmt.Errorf("bad literal %q", lit)
		}

		switch op {
		case "eq":
			if cmp != 0 {
				return false, nil
			}
		case "gt":
			if cmp <= 0 {
				return false, nil
			}
		default:
			return false, fmt.Errorf("bad operator %q", op)
		}
	}
	return true, nil
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return &Backend{table: newFakeTable()}
	})
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name    string
		filters []backend.Filter
		want    string
		wantErr bool
	}{
		{
			name: "partition only",
			want: "PartitionKey eq 'ns'",
		},
		{
			name: "uid and ttl",
			filters: []backend.Filter{
				backend.Eq(models.FieldUID, "u1"),
				backend.Gt(models.FieldTTL, int64(1700000000000)),
			},
			want: "PartitionKey eq 'ns' and uid eq 'u1' and ttl gt 1700000000000L",
		},
		{
			name:    "quotes are doubled",
			filters: []backend.Filter{backend.Eq(models.FieldUID, "o'brien")},
			want:    "PartitionKey eq 'ns' and uid eq 'o''brien'",
		},
		{
			name:    "unknown operator",
			filters: []backend.Filter{{Field: models.FieldUID, Op: "~", Value: "x"}},
			wantErr: true,
		},
		{
			name:    "unsupported value",
			filters: []backend.Filter{backend.Eq(models.FieldUID, []byte("x"))},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildFilter("ns", tt.filters)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery_KeysOnlySelectsKeys(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTable()
	b := &Backend{table: fake}

	_, err := b.Query(ctx, "ns", nil, backend.KeysOnly())
	require.NoError(t, err)
	_, err = b.Query(ctx, "ns", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{keysOnlySelect, ""}, fake.selects)
}

func TestUpsert_StoresTTLAsInt64(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTable()
	b := &Backend{table: fake}

	key := models.Key{Namespace: "ns", ID: "k1"}
	require.NoError(t, b.Upsert(ctx, key, models.Document{
		models.FieldUID:         "u1",
		models.FieldHashedToken: "h",
		models.FieldTTL:         int64(42),
	}))

	e := fake.rows[rowID("ns", "k1")]
	assert.Equal(t, aztables.EDMInt64(42), e.Properties[models.FieldTTL])
	assert.Equal(t, "", e.Properties[models.FieldOriginURL])
}

func TestQuery_ListError(t *testing.T) {
	fake := newFakeTable()
	fake.failList = errors.New("server busy")
	b := &Backend{table: fake}

	_, err := b.Query(context.Background(), "ns", nil)
	require.ErrorContains(t, err, "server busy")
}

func TestServiceClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name:    "nothing configured",
			wantErr: "no azure table authentication",
		},
		{
			name:    "shared key without account",
			opts:    Options{SharedKey: "a2V5"},
			wantErr: "account name",
		},
		{
			name:    "client secret without secret",
			opts:    Options{TenantID: "t", ClientID: "c", AccountName: "acct"},
			wantErr: "client id and secret",
		},
		{
			name:    "client secret without account",
			opts:    Options{TenantID: "t", ClientID: "c", ClientSecret: "s"},
			wantErr: "account name",
		},
		{
			name: "shared key",
			opts: Options{AccountName: "acct", SharedKey: "a2V5"},
		},
		{
			name: "connection string",
			opts: Options{ConnectionString: "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
				"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
				"TableEndpoint=http://127.0.0.1:10002/devstoreaccount1;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := serviceClient(tt.opts)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}
