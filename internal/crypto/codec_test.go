package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/relay-service/internal/domain"
	"github.com/fathima-sithara/relay-service/internal/errs"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("test-secret")
	require.NoError(t, err)
	return c
}

func TestNewCodecRequiresSecret(t *testing.T) {
	_, err := NewCodec("")
	require.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	for _, plaintext := range []string{"hi", "", "héllo wörld 👋", "a longer message that spans more than one block of the underlying cipher"} {
		ct, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		require.NotEmpty(t, ct.IV)

		got, err := c.Decrypt(ct)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	c := newTestCodec(t)
	a, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	b, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	require.NotEqual(t, a.IV, b.IV)
	require.NotEqual(t, a.Content, b.Content)
}

func TestDecryptRejectsTamperedInput(t *testing.T) {
	c := newTestCodec(t)
	ct, err := c.Encrypt("payload")
	require.NoError(t, err)

	tests := []struct {
		name string
		body domain.CipherText
	}{
		{"bad iv encoding", domain.CipherText{IV: "zz", Content: ct.Content}},
		{"short iv", domain.CipherText{IV: "00ff", Content: ct.Content}},
		{"bad ciphertext encoding", domain.CipherText{IV: ct.IV, Content: "not-hex"}},
		{"truncated ciphertext", domain.CipherText{IV: ct.IV, Content: ct.Content[:4]}},
		{"flipped ciphertext bit", domain.CipherText{IV: ct.IV, Content: flipLastByte(t, ct.Content)}},
		{"wrong iv", domain.CipherText{IV: flipLastByte(t, ct.IV), Content: ct.Content}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.body)
			require.ErrorIs(t, err, errs.ErrDecryption)
		})
	}
}

func TestDecryptRejectsForeignKey(t *testing.T) {
	a := newTestCodec(t)
	b, err := NewCodec("another-secret")
	require.NoError(t, err)

	ct, err := a.Encrypt("payload")
	require.NoError(t, err)
	_, err = b.Decrypt(ct)
	require.ErrorIs(t, err, errs.ErrDecryption)
}

func flipLastByte(t *testing.T, s string) string {
	t.Helper()
	raw, err := hex.DecodeString(s)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	return hex.EncodeToString(raw)
}
