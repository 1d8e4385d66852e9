// Package cryptox holds the one-way token hashing used by the token store.
//
// Both implementations embed a fresh random salt in every digest, so hashing
// the same plaintext twice yields two different digests that each verify the
// plaintext. The work factor is deliberately expensive: it is what makes an
// offline brute force of a leaked table impractical.
package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// Hasher turns a plaintext token into a salted one-way digest and checks a
// candidate plaintext against a stored digest.
//
// Hash fails with common.ErrHashing when the primitive itself fails. Compare
// returns (false, nil) on a mismatch and fails with common.ErrHashing only
// when the digest is malformed.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Compare(plaintext, digest string) (bool, error)
}

// Algorithm names accepted by New.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// New builds the hasher named by algorithm. An empty name selects bcrypt;
// bcryptCost is ignored for other algorithms.
func New(algorithm string, bcryptCost int) (Hasher, error) {
	switch algorithm {
	case "", AlgorithmBcrypt:
		return NewBcrypt(bcryptCost)
	case AlgorithmArgon2id:
		return NewArgon2id(DefaultArgon2Params)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownHasher, algorithm)
	}
}
