package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var ErrDecrypt = errors.New("credential secret could not be decrypted")

// Cipher seals credential secrets at rest. Sealed values are
// base64(nonce || secretbox).
type Cipher struct {
	key [keySize]byte
}

// NewCipher takes a base64 encoded 32 byte key.
func NewCipher(encodedKey string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("invalid credentials key: %w", err)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("invalid credentials key: want %d bytes, got %d", keySize, len(raw))
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

func (c *Cipher) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open returns "" for an empty sealed value.
func (c *Cipher) Open(sealed string) (string, error) {
	sealed = strings.TrimSpace(sealed)
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	out, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(out), nil
}
