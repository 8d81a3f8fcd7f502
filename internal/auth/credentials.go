package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// usernameRetryBudget bounds the generate-and-probe loop before falling back
// to a timestamp-derived suffix.
const usernameRetryBudget = 99

// tempPasswordAlphabet excludes ambiguous characters (0/O, 1/l/I).
const tempPasswordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

const tempPasswordLength = 8

// ExistsFunc probes the backing store for a username collision.
type ExistsFunc func(ctx context.Context, username string) (bool, error)

// GenerateUsername builds a pupil username from first name plus last initial
// and probes numeric suffixes until one is free: "Sam Allen" yields sama1,
// sama2, ... Uniqueness holds only under serialized admin access; concurrent
// bulk imports can race for the same suffix.
func GenerateUsername(ctx context.Context, first, last string, exists ExistsFunc) (string, error) {
	base := usernameBase(first, last)

	for i := 1; i <= usernameRetryBudget; i++ {
		candidate := fmt.Sprintf("%s%d", base, i)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to probe username %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	// Budget exhausted: a timestamp suffix is effectively unique.
	return fmt.Sprintf("%s%d", base, time.Now().Unix()%1_000_000), nil
}

func usernameBase(first, last string) string {
	first = sanitizeNamePart(first)
	last = sanitizeNamePart(last)

	base := first
	if last != "" {
		base += last[:1]
	}
	if base == "" {
		base = "pupil"
	}
	return base
}

// sanitizeNamePart lowercases and strips everything but letters, so
// "O'Brien" and "Anne-Marie" produce usable username material.
func sanitizeNamePart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) && r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GeneratePin returns a 4-digit zero-padded PIN.
func GeneratePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// GenerateTempPassword returns an 8-character one-time password from the
// unambiguous alphabet.
func GenerateTempPassword() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	for i := 0; i < tempPasswordLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		b.WriteByte(tempPasswordAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// HashCredential hashes a password or PIN with bcrypt. Every stored
// credential in the system goes through here; no other scheme exists.
func HashCredential(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// CheckCredential compares a plaintext password or PIN against its hash.
func CheckCredential(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
