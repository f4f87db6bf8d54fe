// If you are AI: This file implements the AES cipher modes used on the wire.
// ECB drives the pairing challenge exchange, GCM the encrypted RTSP handshake.

package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// GCMTagSize is the authentication tag length appended to every GCM ciphertext.
const GCMTagSize = 16

var (
	// ErrBlockSize is returned when an ECB input is not block aligned.
	ErrBlockSize = errors.New("crypto: input is not a multiple of the block size")

	// ErrPadding is returned when PKCS#7 padding is malformed.
	ErrPadding = errors.New("crypto: bad PKCS#7 padding")

	// ErrAuth is returned when a GCM tag does not verify.
	ErrAuth = errors.New("crypto: message authentication failed")
)

// PaddedSize rounds size up to the next PKCS#7 block boundary.
// Callers encrypting into a caller-owned buffer size it as
// PaddedSize(len(plaintext)) + GCMTagSize for the tagged GCM form.
func PaddedSize(size int) int {
	return ((size + 15) / 16) * 16
}

// pkcs7Pad appends PKCS#7 padding up to the block boundary.
func pkcs7Pad(data []byte) []byte {
	pad := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

// pkcs7Unpad strips and validates PKCS#7 padding.
func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, ErrPadding
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(data) {
		return nil, ErrPadding
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, ErrPadding
		}
	}
	return data[:len(data)-pad], nil
}

// ECB is an AES cipher in electronic codebook mode.
// The gamestream pairing protocol mandates ECB for its challenge exchange;
// the mode exists nowhere else in the codebase.
type ECB struct {
	block   cipher.Block
	padding bool
}

// NewECB creates an ECB cipher from an AES-128 key.
// When padding is false, inputs must be block aligned.
func NewECB(key []byte, padding bool) (*ECB, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: ecb: %w", err)
	}
	return &ECB{block: block, padding: padding}, nil
}

// Encrypt encrypts plaintext block by block.
func (e *ECB) Encrypt(plaintext []byte) ([]byte, error) {
	if e.padding {
		plaintext = pkcs7Pad(plaintext)
	} else if len(plaintext)%aes.BlockSize != 0 {
		return nil, ErrBlockSize
	}

	out := make([]byte, len(plaintext))
	for i := 0; i < len(plaintext); i += aes.BlockSize {
		e.block.Encrypt(out[i:i+aes.BlockSize], plaintext[i:i+aes.BlockSize])
	}
	return out, nil
}

// Decrypt decrypts ciphertext block by block.
func (e *ECB) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrBlockSize
	}

	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += aes.BlockSize {
		e.block.Decrypt(out[i:i+aes.BlockSize], ciphertext[i:i+aes.BlockSize])
	}

	if e.padding {
		return pkcs7Unpad(out)
	}
	return out, nil
}

// GCM is an AES cipher in Galois/counter mode with a 16-byte tag.
type GCM struct {
	aead cipher.AEAD
}

// NewGCM creates a GCM cipher from an AES-128 key.
// The nonce is 16 bytes: the client's big-endian rikeyid counter followed by
// twelve zero bytes, per the gamestream key exchange.
func NewGCM(key []byte) (*GCM, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, 16)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return &GCM{aead: aead}, nil
}

// Encrypt seals plaintext and returns ciphertext and tag separately.
func (g *GCM) Encrypt(iv, plaintext []byte) (ciphertext, tag []byte, err error) {
	if len(iv) != g.aead.NonceSize() {
		return nil, nil, fmt.Errorf("crypto: gcm: iv must be %d bytes", g.aead.NonceSize())
	}

	sealed := g.aead.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - GCMTagSize
	return sealed[:split], sealed[split:], nil
}

// EncryptTagged seals plaintext and returns tag || ciphertext, the layout
// the encrypted RTSP framing expects.
func (g *GCM) EncryptTagged(iv, plaintext []byte) ([]byte, error) {
	ciphertext, tag, err := g.Encrypt(iv, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(tag)+len(ciphertext))
	out = append(out, tag...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt opens ciphertext and verifies tag.
func (g *GCM) Decrypt(iv, ciphertext, tag []byte) ([]byte, error) {
	if len(tag) != GCMTagSize {
		return nil, ErrAuth
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := g.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuth
	}
	return plaintext, nil
}

// NonceSize returns the IV length the cipher expects.
func (g *GCM) NonceSize() int {
	return g.aead.NonceSize()
}

// CBC is an AES cipher in CBC mode, encrypt-only.
// It exists for the control-stream key exchange which never decrypts host side.
type CBC struct {
	block   cipher.Block
	padding bool
}

// NewCBC creates a CBC cipher from an AES-128 key.
func NewCBC(key []byte, padding bool) (*CBC, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: cbc: %w", err)
	}
	return &CBC{block: block, padding: padding}, nil
}

// Encrypt encrypts plaintext under iv.
func (c *CBC) Encrypt(iv, plaintext []byte) ([]byte, error) {
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("crypto: cbc: iv must be %d bytes", aes.BlockSize)
	}

	if c.padding {
		plaintext = pkcs7Pad(plaintext)
	} else if len(plaintext)%aes.BlockSize != 0 {
		return nil, ErrBlockSize
	}

	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, plaintext)
	return out, nil
}
