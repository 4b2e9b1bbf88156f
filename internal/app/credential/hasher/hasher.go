// Package hasher owns password hashing. Every algorithm produces salted,
// self-describing encodings, so verification picks the algorithm from the
// stored hash rather than from configuration.
package hasher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var ErrUnknownHashFormat = errors.New("unknown password hash format")

var DefaultArgon2Params = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Algorithm is one concrete hashing scheme.
type Algorithm interface {
	Name() string
	Hash(password string) (string, error)
	Compare(password, encoded string) (bool, error)
	Recognizes(encoded string) bool
}

type Argon2id struct {
	params *argon2id.Params
}

func NewArgon2id(params *argon2id.Params) *Argon2id {
	if params == nil {
		params = DefaultArgon2Params
	}
	return &Argon2id{params: params}
}

func (a *Argon2id) Name() string { return "argon2id" }

func (a *Argon2id) Hash(password string) (string, error) {
	return argon2id.CreateHash(password, a.params)
}

// Compare relies on argon2id's constant-time key comparison.
func (a *Argon2id) Compare(password, encoded string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, encoded)
}

func (a *Argon2id) Recognizes(encoded string) bool {
	return strings.HasPrefix(encoded, "$argon2id$")
}

type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Name() string { return "bcrypt" }

func (b *Bcrypt) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b *Bcrypt) Compare(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

func (b *Bcrypt) Recognizes(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// PasswordHasher hashes with the primary algorithm and verifies against any
// known one. At most `concurrency` hash computations run at once.
type PasswordHasher struct {
	primary Algorithm
	known   []Algorithm
	pepper  string
	sem     *semaphore.Weighted
}

func New(primary Algorithm, pepper string, concurrency int64, others ...Algorithm) *PasswordHasher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &PasswordHasher{
		primary: primary,
		known:   append([]Algorithm{primary}, others...),
		pepper:  pepper,
		sem:     semaphore.NewWeighted(concurrency),
	}
}

// FromName builds a hasher whose primary algorithm is selected by name; the
// other algorithm stays available for verifying older hashes.
func FromName(name, pepper string, concurrency int64, bcryptCost int, params *argon2id.Params) (*PasswordHasher, error) {
	a2, bc := NewArgon2id(params), NewBcrypt(bcryptCost)
	switch strings.ToLower(name) {
	case "", "argon2id":
		return New(a2, pepper, concurrency, bc), nil
	case "bcrypt":
		return New(bc, pepper, concurrency, a2), nil
	default:
		return nil, fmt.Errorf("unsupported password hash algorithm %q", name)
	}
}

func (h *PasswordHasher) Algorithm() string { return h.primary.Name() }

func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	return h.primary.Hash(password + h.pepper)
}

func (h *PasswordHasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	algo := h.lookup(encoded)
	if algo == nil {
		return false, ErrUnknownHashFormat
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	return algo.Compare(password+h.pepper, encoded)
}

func (h *PasswordHasher) lookup(encoded string) Algorithm {
	for _, a := range h.known {
		if a.Recognizes(encoded) {
			return a
		}
	}
	return nil
}
