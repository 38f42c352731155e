// Package vault seals and opens credential secrets at rest. It has no
// business logic and performs no I/O.
//
// Blobs are text so they fit a TEXT column:
//
//	v1.xc20p.<nonce>.<ciphertext>.<tag>
//
// with every part raw URL-safe base64. The "v1.xc20p" header is bound to the
// ciphertext as additional authenticated data, so a tampered header fails
// authentication like a tampered body.
package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/tbourn/inbound-bridge/internal/domain"
)

const (
	version   = "v1"
	algorithm = "xc20p"
	prefix    = version + "."
	header    = version + "." + algorithm
)

var hkdfInfo = []byte("inbound-bridge.vault.v1")

var b64 = base64.RawURLEncoding

// ErrNoKey is returned by New when the key material is empty. The process
// must not start without it.
var ErrNoKey = errors.New("vault: encryption key not configured")

// Options tunes a Vault.
type Options struct {
	// AllowLegacyPlaintext makes Open return blobs without the "v1." prefix
	// as-is. Rows written before encryption was introduced are the only
	// intended users. Every such read is logged.
	AllowLegacyPlaintext bool
}

// Vault seals and opens secrets with one derived key. Safe for concurrent use.
type Vault struct {
	key  []byte
	opts Options
}

// New derives a 32-byte key from secret with HKDF-SHA256.
func New(secret string, opts Options) (*Vault, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoKey
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	return &Vault{key: key, opts: opts}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (v *Vault) Seal(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("vault: cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	out := aead.Seal(nil, nonce, plaintext, []byte(header))
	ct, tag := out[:len(out)-aead.Overhead()], out[len(out)-aead.Overhead():]

	return strings.Join([]string{
		version, algorithm,
		b64.EncodeToString(nonce),
		b64.EncodeToString(ct),
		b64.EncodeToString(tag),
	}, "."), nil
}

// Open decrypts a blob produced by Seal. Malformed blobs, unknown
// versions or algorithms and failed authentication all return an error
// wrapping domain.ErrDecryption; Open never returns partial plaintext.
func (v *Vault) Open(blob string) ([]byte, error) {
	if !strings.HasPrefix(blob, prefix) {
		if v.opts.AllowLegacyPlaintext && blob != "" {
			log.Warn().Str("event", "legacy_plaintext_credential").Msg("reading unsealed credential blob")
			return []byte(blob), nil
		}
		return nil, fmt.Errorf("%w: missing version prefix", domain.ErrDecryption)
	}

	parts := strings.Split(blob, ".")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: malformed blob", domain.ErrDecryption)
	}
	if parts[1] != algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", domain.ErrDecryption, parts[1])
	}
	nonce, err1 := b64.DecodeString(parts[2])
	ct, err2 := b64.DecodeString(parts[3])
	tag, err3 := b64.DecodeString(parts[4])
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, fmt.Errorf("%w: bad encoding", domain.ErrDecryption)
	}
	if len(nonce) != chacha20poly1305.NonceSizeX || len(tag) != chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: bad nonce or tag length", domain.ErrDecryption)
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher: %w", err)
	}
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(append(sealed, ct...), tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(header))
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrDecryption)
	}
	return plaintext, nil
}

// SealJSON marshals v and seals the result.
func (v *Vault) SealJSON(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("vault: marshal: %w", err)
	}
	return v.Seal(raw)
}

// OpenJSON opens blob and unmarshals it into dst. A blob that opens but does
// not decode is reported as a decryption failure too.
func (v *Vault) OpenJSON(blob string, dst any) error {
	raw, err := v.Open(blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrDecryption, err)
	}
	return nil
}
