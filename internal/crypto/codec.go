package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/fathima-sithara/relay-service/internal/domain"
	"github.com/fathima-sithara/relay-service/internal/errs"
)

const keySize = 32

// Codec encrypts and decrypts message bodies with AES-256-GCM. The key
// is derived once from the configured secret; the GCM nonce takes the
// IV slot of the stored pair and is fresh per call.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the process-lifetime key from secret. An empty
// secret is a startup error, never a degraded default key.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is required")
	}
	key, err := scrypt.Key([]byte(secret), []byte("salt"), 16384, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

func (c *Codec) Encrypt(plaintext string) (domain.CipherText, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return domain.CipherText{}, err
	}
	ct := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return domain.CipherText{
		IV:      hex.EncodeToString(nonce),
		Content: hex.EncodeToString(ct),
	}, nil
}

// Decrypt fails with errs.ErrDecryption on any malformed or tampered
// input rather than returning corrupted plaintext.
func (c *Codec) Decrypt(body domain.CipherText) (string, error) {
	nonce, err := hex.DecodeString(body.IV)
	if err != nil {
		return "", fmt.Errorf("%w: bad iv encoding", errs.ErrDecryption)
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad iv length", errs.ErrDecryption)
	}
	ct, err := hex.DecodeString(body.Content)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", errs.ErrDecryption)
	}
	pt, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDecryption, err)
	}
	return string(pt), nil
}
