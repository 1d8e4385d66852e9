// Package s3store is a backend.Backend on an S3-compatible object store.
// Every document is a JSON object at <prefix><namespace>/<id>.json; queries
// list the namespace prefix and filter client-side.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/google/uuid"
)

// deleteBatch is the DeleteObjects limit per request.
const deleteBatch = 1000

const objectSuffix = ".json"

// API is the subset of *s3.Client used by the backend.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// object is the stored JSON form of a document.
type object struct {
	UID         string `json:"uid"`
	HashedToken string `json:"hashedToken"`
	TTL         int64  `json:"ttl"`
	OriginURL   string `json:"originUrl,omitempty"`
}

// Backend stores documents as objects in one bucket.
type Backend struct {
	client API
	bucket string
	prefix string
}

// New wraps an S3 client.
func New(client API, bucket, prefix string) *Backend {
	return &Backend{client: client, bucket: bucket, prefix: prefix}
}

// Ready reports whether b was built by a constructor.
func (b *Backend) Ready() bool {
	return b != nil && b.client != nil
}

// Options describes how to reach the bucket.
type Options struct {
	Bucket          string
	Prefix          string
	Region          string
	BaseEndpoint    string
	AccessKeyID     string
	SecretAccessKey string
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewFromOptions builds an S3 client from opts. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain applies.
// A base endpoint switches to path-style addressing for MinIO and friends.
func NewFromOptions(ctx context.Context, opts Options) (*Backend, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, opts.Bucket, opts.Prefix), nil
}

func (b *Backend) namespacePrefix(namespace string) string {
	return b.prefix + namespace + "/"
}

func (b *Backend) objectKey(key models.Key) string {
	return b.namespacePrefix(key.Namespace) + key.ID + objectSuffix
}

func (b *Backend) listIDs(ctx context.Context, namespace string) ([]string, error) {
	prefix := b.namespacePrefix(namespace)
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	var ids []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			// nested keys belong to a different layout
			if strings.Contains(name, "/") || !strings.HasSuffix(name, objectSuffix) {
				continue
			}
			ids = append(ids, strings.TrimSuffix(name, objectSuffix))
		}
	}
	return ids, nil
}

func (b *Backend) get(ctx context.Context, key models.Key) (models.Document, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 get %s: %w", b.objectKey(key), err)
	}
	defer out.Body.Close()

	var obj object
	if err := json.NewDecoder(out.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", b.objectKey(key), err)
	}
	return models.Document{
		models.FieldUID:         obj.UID,
		models.FieldHashedToken: obj.HashedToken,
		models.FieldTTL:         obj.TTL,
		models.FieldOriginURL:   obj.OriginURL,
	}, nil
}

func (b *Backend) Query(ctx context.Context, namespace string, filters []backend.Filter, opts ...backend.QueryOption) ([]backend.Entity, error) {
	o := backend.ApplyQueryOptions(opts...)

	ids, err := b.listIDs(ctx, namespace)
	if err != nil {
		return nil, err
	}

	var result []backend.Entity
	for _, id := range ids {
		key := models.Key{Namespace: namespace, ID: id}
		if o.KeysOnly && len(filters) == 0 {
			result = append(result, backend.Entity{Key: key})
			continue
		}

		doc, err := b.get(ctx, key)
		if err != nil {
			return nil, err
		}
		// deleted between list and get
		if doc == nil {
			continue
		}
		ok, err := backend.Match(doc, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		e := backend.Entity{Key: key}
		if !o.KeysOnly {
			e.Doc = doc
		}
		result = append(result, e)
	}
	return result, nil
}

func (b *Backend) Upsert(ctx context.Context, key models.Key, doc models.Document) error {
	rec, err := models.RecordFromDocument(doc)
	if err != nil {
		return err
	}
	body, err := json.Marshal(object{
		UID:         rec.UID,
		HashedToken: rec.HashedToken,
		TTL:         rec.TTL.UnixMilli(),
		OriginURL:   rec.OriginURL,
	})
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(key)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", b.objectKey(key), err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, keys ...models.Key) error {
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(b.objectKey(k))})
		}

		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3 delete: %w", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("s3 delete %s: %s: %s", aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message))
		}
	}
	return nil
}

func (b *Backend) AllocateKey(_ context.Context, namespace string) (models.Key, error) {
	return models.Key{Namespace: namespace, ID: uuid.NewString()}, nil
}
