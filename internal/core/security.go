// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	saltLength        = 16
	refreshTokenBytes = 32
)

var ErrInvalidHash = errors.New("invalid password hash")

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// currentArgon is what new hashes use. Stored hashes with other
// parameters are upgraded on the next successful login.
var currentArgon = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

func (p argonParams) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

// encode renders the PHC string form: $argon2id$v=19$m=..,t=..,p=..$salt$key
func (p argonParams) encode(salt, key []byte) string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

type argonHash struct {
	params argonParams
	salt   []byte
	key    []byte
}

func parseArgonHash(encoded string) (*argonHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: wrong segment count", ErrInvalidHash)
	}
	if parts[1] != "argon2id" {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: version: %w", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: incompatible version %d", ErrInvalidHash, version)
	}

	h := &argonHash{}
	if _, err := fmt.Sscanf(
		parts[3],
		"m=%d,t=%d,p=%d",
		&h.params.memory,
		&h.params.time,
		&h.params.threads,
	); err != nil {
		return nil, fmt.Errorf("%w: params: %w", ErrInvalidHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %w", ErrInvalidHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: key: %w", ErrInvalidHash, err)
	}
	if len(h.key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidHash)
	}

	//nolint:gosec // G115: decoded key is a few dozen bytes
	h.params.keyLen = uint32(len(h.key))

	return h, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return currentArgon.encode(salt, currentArgon.key(password, salt)), nil
}

func isBcryptHash(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// verifyPassword reports whether password matches encoded, which is an
// argon2id hash or a bcrypt hash from accounts created before argon2id.
// The second result is true when the hash should be replaced.
func verifyPassword(password, encoded string) (match, stale bool, err error) {
	if isBcryptHash(encoded) {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, false, nil
		}
		if err != nil {
			return false, false, fmt.Errorf("verify bcrypt hash: %w", err)
		}
		return true, true, nil
	}

	h, err := parseArgonHash(encoded)
	if err != nil {
		return false, false, err
	}

	if subtle.ConstantTimeCompare(h.key, h.params.key(password, h.salt)) != 1 {
		return false, false, nil
	}
	return true, h.params != currentArgon, nil
}

// dummyHash is built on first use so importing core stays cheap.
var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("dummy_password_for_timing_attack_prevention")
	if err != nil {
		panic(fmt.Sprintf("security: failed to generate dummy hash: %v", err))
	}
	return hash
})

// PasswordCheck is the outcome of CheckPassword. Rehash, when set, is a
// fresh argon2id hash of the verified password that should replace the
// stored one.
type PasswordCheck struct {
	Valid  bool
	Rehash string
}

// CheckPassword verifies password against encoded. An empty encoded hash
// stands for an unknown account: a full verification still runs against
// a dummy hash so the response time does not reveal the difference.
func CheckPassword(password, encoded string) (PasswordCheck, error) {
	if encoded == "" {
		//nolint:errcheck // result is discarded, only the cost matters
		_, _, _ = verifyPassword(password, dummyHash())
		return PasswordCheck{}, nil
	}

	match, stale, err := verifyPassword(password, encoded)
	if err != nil || !match {
		return PasswordCheck{}, err
	}

	check := PasswordCheck{Valid: true}
	if stale {
		// a failed upgrade leaves the old hash in place; login still succeeds
		if rehash, err := HashPassword(password); err == nil {
			check.Rehash = rehash
		}
	}
	return check, nil
}

// GenerateRefreshToken returns an opaque token carrying 256 bits of
// entropy, unpadded base64url.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the ledger key for a refresh token: hex SHA-256.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
