// Package aztable is a backend.Backend on Azure Table Storage. The namespace
// is the partition key, the allocated id the row key, and filters are sent
// to the service as OData expressions.
package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultTable = "PasswordlessTokens"

	serviceURLFormat = "https://%s.table.core.windows.net"
	keysOnlySelect   = "PartitionKey,RowKey"
)

// tableAPI is the part of a table client the backend talks to.
type tableAPI interface {
	ListEntities(ctx context.Context, filter, selectFields string) ([][]byte, error)
	UpsertEntity(ctx context.Context, entity []byte) error
	DeleteEntity(ctx context.Context, partitionKey, rowKey string) error
}

// Backend stores one entity per token record.
type Backend struct {
	table tableAPI
}

// Options picks the authentication method. The first complete method wins,
// in the order connection string, shared key, client secret.
type Options struct {
	Table            string
	ConnectionString string
	AccountName      string
	SharedKey        string
	TenantID         string
	ClientID         string
	ClientSecret     string
}

// New connects to the table described by opts and creates it if needed.
func New(ctx context.Context, opts Options) (*Backend, error) {
	svc, err := serviceClient(opts)
	if err != nil {
		return nil, err
	}

	name := opts.Table
	if name == "" {
		name = DefaultTable
	}
	c := &client{c: svc.NewClient(name)}
	if err := c.createIfNotExists(ctx); err != nil {
		return nil, err
	}
	return &Backend{table: c}, nil
}

// Ready reports whether b was built by a constructor.
func (b *Backend) Ready() bool {
	return b != nil && b.table != nil
}

func serviceClient(opts Options) (*aztables.ServiceClient, error) {
	if opts.ConnectionString != "" {
		svc, err := aztables.NewServiceClientFromConnectionString(opts.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("could not create service client from connection string: %w", err)
		}
		return svc, nil
	}

	if opts.SharedKey != "" {
		if opts.AccountName == "" {
			return nil, errors.New("an account name is required for shared key authentication")
		}
		cred, err := aztables.NewSharedKeyCredential(opts.AccountName, opts.SharedKey)
		if err != nil {
			return nil, fmt.Errorf("could not create shared key credentials: %w", err)
		}
		svc, err := aztables.NewServiceClientWithSharedKey(serviceURL(opts.AccountName), cred, nil)
		if err != nil {
			return nil, fmt.Errorf("could not create service client with shared key: %w", err)
		}
		return svc, nil
	}

	if opts.TenantID != "" {
		if opts.ClientID == "" || opts.ClientSecret == "" {
			return nil, errors.New("a client id and secret are required for client secret authentication")
		}
		if opts.AccountName == "" {
			return nil, errors.New("an account name is required for client secret authentication")
		}
		cred, err := azidentity.NewClientSecretCredential(opts.TenantID, opts.ClientID, opts.ClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("could not create client secret credential: %w", err)
		}
		svc, err := aztables.NewServiceClient(serviceURL(opts.AccountName), cred, nil)
		if err != nil {
			return nil, fmt.Errorf("could not create service client with client secret: %w", err)
		}
		return svc, nil
	}

	return nil, errors.New("no azure table authentication method configured")
}

func serviceURL(account string) string {
	return fmt.Sprintf(serviceURLFormat, account)
}

func (b *Backend) Query(ctx context.Context, namespace string, filters []backend.Filter, opts ...backend.QueryOption) ([]backend.Entity, error) {
	o := backend.ApplyQueryOptions(opts...)

	filter, err := buildFilter(namespace, filters)
	if err != nil {
		return nil, err
	}
	sel := ""
	if o.KeysOnly {
		sel = keysOnlySelect
	}

	rows, err := b.table.ListEntities(ctx, filter, sel)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve the entities: %w", err)
	}

	result := make([]backend.Entity, 0, len(rows))
	for _, raw := range rows {
		var e aztables.EDMEntity
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("could not unmarshal entity: %w", err)
		}
		ent := backend.Entity{Key: models.Key{Namespace: e.PartitionKey, ID: e.RowKey}}
		if !o.KeysOnly {
			ent.Doc = decode(e.Properties)
		}
		result = append(result, ent)
	}
	return result, nil
}

func (b *Backend) Upsert(ctx context.Context, key models.Key, doc models.Document) error {
	rec, err := models.RecordFromDocument(doc)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(aztables.EDMEntity{
		Entity: aztables.Entity{PartitionKey: key.Namespace, RowKey: key.ID},
		Properties: map[string]any{
			models.FieldUID:         rec.UID,
			models.FieldHashedToken: rec.HashedToken,
			models.FieldTTL:         aztables.EDMInt64(rec.TTL.UnixMilli()),
			models.FieldOriginURL:   rec.OriginURL,
		},
	})
	if err != nil {
		return fmt.Errorf("could not marshal entity: %w", err)
	}

	if err := b.table.UpsertEntity(ctx, raw); err != nil {
		return fmt.Errorf("could not upsert entity %s: %w", key, err)
	}
	return nil
}

// Delete removes keys one by one. Table transactions are limited to a
// single partition and 100 operations, so they are not used here.
func (b *Backend) Delete(ctx context.Context, keys ...models.Key) error {
	for _, k := range keys {
		if err := b.table.DeleteEntity(ctx, k.Namespace, k.ID); err != nil {
			return fmt.Errorf("could not delete entity %s: %w", k, err)
		}
	}
	return nil
}

func (b *Backend) AllocateKey(_ context.Context, namespace string) (models.Key, error) {
	return models.Key{Namespace: namespace, ID: uuid.NewString()}, nil
}

// buildFilter renders the partition restriction plus filters as OData.
func buildFilter(namespace string, filters []backend.Filter) (string, error) {
	parts := []string{"PartitionKey eq " + quote(namespace)}
	for _, f := range filters {
		var op string
		switch f.Op {
		case backend.OpEqual:
			op = "eq"
		case backend.OpGreater:
			op = "gt"
		default:
			return "", fmt.Errorf("unsupported operator %q", f.Op)
		}

		var lit string
		switch v := f.Value.(type) {
		case string:
			lit = quote(v)
		default:
			n, ok := models.ToInt64(v)
			if !ok {
				return "", fmt.Errorf("unsupported filter value %T for %s", f.Value, f.Field)
			}
			lit = strconv.FormatInt(n, 10) + "L"
		}
		parts = append(parts, f.Field+" "+op+" "+lit)
	}
	return strings.Join(parts, " and "), nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// decode maps EDM property values back to document values.
func decode(props map[string]any) models.Document {
	doc := make(models.Document, len(props))
	for k, v := range props {
		switch n := v.(type) {
		case aztables.EDMInt64:
			doc[k] = int64(n)
		case int32:
			doc[k] = int64(n)
		default:
			doc[k] = v
		}
	}
	return doc
}

// client adapts *aztables.Client to tableAPI.
type client struct {
	c *aztables.Client
}

func (c *client) createIfNotExists(ctx context.Context) error {
	_, err := c.c.CreateTable(ctx, nil)
	var re *azcore.ResponseError
	if errors.As(err, &re) && re.ErrorCode == "TableAlreadyExists" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not create table: %w", err)
	}
	return nil
}

func (c *client) ListEntities(ctx context.Context, filter, selectFields string) ([][]byte, error) {
	opts := &aztables.ListEntitiesOptions{Filter: &filter}
	if selectFields != "" {
		opts.Select = &selectFields
	}

	var rows [][]byte
	pager := c.c.NewListEntitiesPager(opts)
	for pager.More() {
		res, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, res.Entities...)
	}
	return rows, nil
}

func (c *client) UpsertEntity(ctx context.Context, entity []byte) error {
	_, err := c.c.UpsertEntity(ctx, entity, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (c *client) DeleteEntity(ctx context.Context, partitionKey, rowKey string) error {
	_, err := c.c.DeleteEntity(ctx, partitionKey, rowKey, nil)
	var re *azcore.ResponseError
	if errors.As(err, &re) && re.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}
