// If you are AI: This file provides hashing, key derivation and random helpers.
// All pairing-protocol cryptography is built from these primitives.

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// DefaultAlphabet matches the character set used for generated secrets
// such as session cookies.
const DefaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!%&()=-"

// Hash returns the SHA-256 digest of plaintext.
func Hash(plaintext []byte) [sha256.Size]byte {
	return sha256.Sum256(plaintext)
}

// HashString returns the SHA-256 digest of a string.
func HashString(plaintext string) [sha256.Size]byte {
	return sha256.Sum256([]byte(plaintext))
}

// DeriveAESKey derives the AES-128 pairing key from the client salt and the PIN.
// The key is the first 16 bytes of SHA-256(salt || pin).
func DeriveAESKey(salt [16]byte, pin string) [16]byte {
	digest := sha256.Sum256(append(salt[:], []byte(pin)...))

	var key [16]byte
	copy(key[:], digest[:16])
	return key
}

// Rand returns n cryptographically random bytes.
func Rand(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("crypto: rand: %v", err))
	}
	return buf
}

// RandAlphabet returns a random string of length n drawn from alphabet.
func RandAlphabet(n int, alphabet string) string {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}

	raw := Rand(n)
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}
