package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Hashes use the passlib "pbkdf2_sha256" modular crypt format so accounts created by
// older tooling keep working: $pbkdf2-sha256$<rounds>$<ab64 salt>$<ab64 checksum>
const (
	pbkdf2Prefix     = "$pbkdf2-sha256$"
	DefaultRounds    = 29000
	saltSize         = 16
	pbkdf2KeyLength  = 32
	minAcceptedRound = 1000
)

// HashPassword derives a new pbkdf2-sha256 hash with a random salt.
func HashPassword(password string) (string, error) {
	return HashPasswordWithRounds(password, DefaultRounds)
}

func HashPasswordWithRounds(password string, rounds int) (string, error) {
	if rounds < minAcceptedRound {
		return "", fmt.Errorf("pbkdf2 rounds too low: %d", rounds)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return encodePBKDF2(password, salt, rounds), nil
}

// VerifyPassword checks password against a stored pbkdf2-sha256 or bcrypt hash.
func VerifyPassword(hash, password string) error {
	switch {
	case strings.HasPrefix(hash, pbkdf2Prefix):
		return verifyPBKDF2(hash, password)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			return pkg.ErrInvalidPassword
		}
		return nil
	default:
		return pkg.ErrUnsupportedHash
	}
}

func verifyPBKDF2(hash, password string) error {
	parts := strings.Split(strings.TrimPrefix(hash, pbkdf2Prefix), "$")
	if len(parts) != 3 {
		return pkg.ErrUnsupportedHash
	}
	rounds, err := strconv.Atoi(parts[0])
	if err != nil || rounds < 1 {
		return pkg.ErrUnsupportedHash
	}
	salt, err := ab64Decode(parts[1])
	if err != nil {
		return pkg.ErrUnsupportedHash
	}
	expected, err := ab64Decode(parts[2])
	if err != nil || len(expected) == 0 {
		return pkg.ErrUnsupportedHash
	}
	actual := pbkdf2.Key([]byte(password), salt, rounds, len(expected), sha256.New)
	if subtle.ConstantTimeCompare(actual, expected) != 1 {
		return pkg.ErrInvalidPassword
	}
	return nil
}

func encodePBKDF2(password string, salt []byte, rounds int) string {
	key := pbkdf2.Key([]byte(password), salt, rounds, pbkdf2KeyLength, sha256.New)
	return fmt.Sprintf("%s%d$%s$%s", pbkdf2Prefix, rounds, ab64Encode(salt), ab64Encode(key))
}

// ab64 is passlib's base64 variant: '.' instead of '+', no padding.
func ab64Encode(b []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(b), "+", ".")
}

func ab64Decode(s string) ([]byte, error) {
	s = strings.TrimRight(strings.ReplaceAll(s, ".", "+"), "=")
	return base64.RawStdEncoding.DecodeString(s)
}
