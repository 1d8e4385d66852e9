package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"golang.org/x/crypto/argon2"
)

const argon2ID = "argon2id"

// Upper bounds for parameters read back from a stored digest.
const (
	maxArgon2Memory = 1 << 20 // KiB, 1 GiB
	maxArgon2Time   = 10
)

// Argon2Params configures the Argon2id hasher. Memory is in KiB.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params is 64 MiB, one pass, four lanes, a 16 byte salt and a
// 32 byte key.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024,
	Time:        1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2id hashes tokens with Argon2id and encodes digests in PHC format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2id struct {
	params Argon2Params
	rand   io.Reader
}

// NewArgon2id validates params and returns the hasher.
func NewArgon2id(params Argon2Params) (*Argon2id, error) {
	if params.Memory < 8 || params.Time < 1 || params.Parallelism < 1 || params.SaltLength < 8 || params.KeyLength < 16 {
		return nil, fmt.Errorf("%w: argon2 parameters %+v", common.ErrInvalidArgument, params)
	}
	return &Argon2id{params: params, rand: rand.Reader}, nil
}

// Hash returns a PHC-encoded Argon2id digest of plaintext.
func (a *Argon2id) Hash(plaintext string) (string, error) {
	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(a.rand, salt); err != nil {
		return "", fmt.Errorf("%w: reading salt: %w", common.ErrHashing, err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		a.params.Memory,
		a.params.Time,
		a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Compare recomputes the key with the parameters stored in digest.
func (a *Argon2id) Compare(plaintext, digest string) (bool, error) {
	p, salt, key, err := decodePHC(digest)
	if err != nil {
		return false, fmt.Errorf("%w: %w", common.ErrHashing, err)
	}

	computed := argon2.IDKey([]byte(plaintext), salt, p.Time, p.Memory, p.Parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func decodePHC(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return p, nil, nil, errors.New("invalid PHC format")
	}
	if parts[1] != argon2ID {
		return p, nil, nil, fmt.Errorf("unsupported algorithm %q", parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return p, nil, nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return p, nil, nil, errors.New("invalid parameter entry")
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return p, nil, nil, errors.New("invalid memory parameter")
			}
			p.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return p, nil, nil, errors.New("invalid time parameter")
			}
			p.Time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v == 0 {
				return p, nil, nil, errors.New("invalid parallelism parameter")
			}
			p.Parallelism = uint8(v)
		default:
			return p, nil, nil, fmt.Errorf("unsupported parameter %q", kv[0])
		}
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		return p, nil, nil, errors.New("missing parameters")
	}
	if p.Memory > maxArgon2Memory || p.Time > maxArgon2Time {
		return p, nil, nil, fmt.Errorf("parameters m=%d,t=%d exceed limits", p.Memory, p.Time)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, errors.New("invalid salt encoding")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errors.New("invalid hash encoding")
	}

	return p, salt, key, nil
}
