// Package models defines the persisted shape of an outstanding token and the
// identity key backends use to address it.
package models

import (
	"fmt"
	"time"
)

// Field names of a TokenRecord as stored in a backend document.
const (
	FieldUID         = "uid"
	FieldHashedToken = "hashedToken"
	FieldTTL         = "ttl"
	FieldOriginURL   = "originUrl"
)

// Key identifies one stored document inside a namespace.
type Key struct {
	Namespace string
	ID        string
}

func (k Key) String() string {
	return k.Namespace + "/" + k.ID
}

// IsZero reports whether the key was never allocated.
func (k Key) IsZero() bool {
	return k.ID == ""
}

// TokenRecord is the single outstanding token of a user. TTL is an absolute
// instant; the record is valid only while the current time is before it.
type TokenRecord struct {
	UID         string
	HashedToken string
	TTL         time.Time
	OriginURL   string
}

// Expired reports whether the record is no longer valid at now.
func (r *TokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.TTL)
}

// Document is the field map a backend persists. Values are strings or int64.
type Document map[string]any

// Document converts the record to its stored form. TTL is kept as Unix
// milliseconds so that every backend can compare it numerically.
func (r *TokenRecord) Document() Document {
	return Document{
		FieldUID:         r.UID,
		FieldHashedToken: r.HashedToken,
		FieldTTL:         r.TTL.UnixMilli(),
		FieldOriginURL:   r.OriginURL,
	}
}

// RecordFromDocument rebuilds a TokenRecord from its stored form.
func RecordFromDocument(doc Document) (*TokenRecord, error) {
	uid, ok := doc[FieldUID].(string)
	if !ok {
		return nil, fmt.Errorf("document field %q: want string, got %T", FieldUID, doc[FieldUID])
	}
	hashed, ok := doc[FieldHashedToken].(string)
	if !ok {
		return nil, fmt.Errorf("document field %q: want string, got %T", FieldHashedToken, doc[FieldHashedToken])
	}
	ttl, ok := ToInt64(doc[FieldTTL])
	if !ok {
		return nil, fmt.Errorf("document field %q: want integer, got %T", FieldTTL, doc[FieldTTL])
	}

	// an absent origin means empty
	origin, _ := doc[FieldOriginURL].(string)

	return &TokenRecord{
		UID:         uid,
		HashedToken: hashed,
		TTL:         time.UnixMilli(ttl),
		OriginURL:   origin,
	}, nil
}

// ToInt64 normalises the integer representations produced by the various
// backend decoders (JSON numbers, driver ints).
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	case time.Time:
		return n.UnixMilli(), true
	default:
		return 0, false
	}
}
