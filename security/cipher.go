package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-integrations/core"
	"golang.org/x/crypto/pbkdf2"
)

const (
	KeyDerivationIterations = 10000
	KeySize                 = 32
)

var ErrCiphertextInvalid = errors.New("security: ciphertext invalid")

// DeriveKey derives the AES-256 key with PBKDF2-HMAC-SHA256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, KeyDerivationIterations, KeySize, sha256.New)
}

type Option func(*TokenCipher)

// TokenCipher encrypts tokens with AES-256-CBC. New values use the configured
// format; Decrypt accepts both formats.
type TokenCipher struct {
	key    []byte
	iv     []byte
	format string
	random io.Reader
}

func WithFormat(format string) Option {
	return func(c *TokenCipher) {
		trimmed := strings.TrimSpace(strings.ToLower(format))
		if trimmed != "" {
			c.format = trimmed
		}
	}
}

func WithRandom(random io.Reader) Option {
	return func(c *TokenCipher) {
		if random != nil {
			c.random = random
		}
	}
}

// NewTokenCipher derives the key from cfg once.
func NewTokenCipher(cfg core.CipherConfig, opts ...Option) (*TokenCipher, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("security: cipher passphrase is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(strings.TrimSpace(cfg.Salt))
	if err != nil {
		return nil, fmt.Errorf("security: decode salt: %w", err)
	}
	var iv []byte
	if strings.TrimSpace(cfg.IV) != "" {
		iv, err = hex.DecodeString(strings.TrimSpace(cfg.IV))
		if err != nil {
			return nil, fmt.Errorf("security: decode iv: %w", err)
		}
	}
	if strings.TrimSpace(cfg.Format) != "" {
		opts = append([]Option{WithFormat(cfg.Format)}, opts...)
	}
	return NewTokenCipherFromKey(DeriveKey(cfg.Passphrase, salt), iv, opts...)
}

// NewTokenCipherFromKey builds a cipher from raw key material. iv may be nil
// when legacy values never need to be read or written.
func NewTokenCipherFromKey(key []byte, iv []byte, opts ...Option) (*TokenCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("security: key must be %d bytes", KeySize)
	}
	if len(iv) != 0 && len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("security: iv must be %d bytes", aes.BlockSize)
	}
	c := &TokenCipher{
		key:    bytes.Clone(key),
		iv:     bytes.Clone(iv),
		format: core.CipherFormatV2,
		random: rand.Reader,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	switch c.format {
	case core.CipherFormatV2:
	case core.CipherFormatLegacy:
		if len(c.iv) == 0 {
			return nil, fmt.Errorf("security: legacy format requires a fixed iv")
		}
	default:
		return nil, fmt.Errorf("security: unsupported cipher format %q", c.format)
	}
	return c, nil
}

func (c *TokenCipher) Format() string {
	if c == nil {
		return ""
	}
	return c.format
}

func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("security: token cipher is nil")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("security: init cipher: %w", err)
	}

	iv := c.iv
	if c.format == core.CipherFormatV2 {
		iv = make([]byte, aes.BlockSize)
		if _, err := io.ReadFull(c.random, iv); err != nil {
			return "", fmt.Errorf("security: generate iv: %w", err)
		}
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return encodeEnvelope(envelope{Format: c.format, IV: iv, Ciphertext: ciphertext}), nil
}

// Decrypt fails with a credentials-invalid error on malformed input or when
// the key or IV does not match.
func (c *TokenCipher) Decrypt(ciphertext string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("security: token cipher is nil")
	}
	plaintext, err := c.decrypt(ciphertext)
	if err != nil {
		return "", core.NewCredentialsInvalidError("security: token decryption failed", err)
	}
	return plaintext, nil
}

func (c *TokenCipher) decrypt(ciphertext string) (string, error) {
	env, err := decodeEnvelope(ciphertext, aes.BlockSize)
	if err != nil {
		return "", err
	}
	iv := env.IV
	if env.Format == core.CipherFormatLegacy {
		if len(c.iv) == 0 {
			return "", fmt.Errorf("%w: legacy value but no fixed iv configured", ErrCiphertextInvalid)
		}
		iv = c.iv
	}
	if len(env.Ciphertext) == 0 || len(env.Ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrCiphertextInvalid)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("security: init cipher: %w", err)
	}
	padded := make([]byte, len(env.Ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, env.Ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: plaintext is not valid utf-8", ErrCiphertextInvalid)
	}
	return string(plaintext), nil
}

// EncryptPair encrypts each token independently. A nil refresh token stays nil.
func (c *TokenCipher) EncryptPair(token string, refreshToken *string) (core.TokenPair, error) {
	encryptedToken, err := c.Encrypt(token)
	if err != nil {
		return core.TokenPair{}, err
	}
	pair := core.TokenPair{Token: encryptedToken}
	if refreshToken == nil {
		return pair, nil
	}
	encryptedRefresh, err := c.Encrypt(*refreshToken)
	if err != nil {
		return core.TokenPair{}, err
	}
	pair.RefreshToken = &encryptedRefresh
	return pair, nil
}

func (c *TokenCipher) DecryptPair(pair core.TokenPair) (core.TokenPair, error) {
	token, err := c.Decrypt(pair.Token)
	if err != nil {
		return core.TokenPair{}, err
	}
	out := core.TokenPair{Token: token}
	if pair.RefreshToken == nil {
		return out, nil
	}
	refresh, err := c.Decrypt(*pair.RefreshToken)
	if err != nil {
		return core.TokenPair{}, err
	}
	out.RefreshToken = &refresh
	return out, nil
}

// NeedsRewrap reports whether a stored value was written with the fixed IV.
func (c *TokenCipher) NeedsRewrap(ciphertext string) bool {
	return ParseEnvelopeMetadata(ciphertext).Format == core.CipherFormatLegacy
}

// Rewrap re-encrypts a value with the cipher's current format.
func (c *TokenCipher) Rewrap(ciphertext string) (string, error) {
	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: invalid padded length", ErrCiphertextInvalid)
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrCiphertextInvalid)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("%w: invalid padding", ErrCiphertextInvalid)
		}
	}
	return data[:len(data)-padding], nil
}

var _ core.TokenCipher = (*TokenCipher)(nil)
