package security

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
)

const (
	testPassphrase = "correct horse battery staple"
	testSaltHex    = "73616c7473616c74"
	testIVHex      = "000102030405060708090a0b0c0d0e0f"
)

func newLegacyCipher(t *testing.T) *TokenCipher {
	t.Helper()
	c, err := NewTokenCipher(core.CipherConfig{
		Passphrase: testPassphrase,
		Salt:       testSaltHex,
		IV:         testIVHex,
		Format:     core.CipherFormatLegacy,
	})
	if err != nil {
		t.Fatalf("new legacy cipher: %v", err)
	}
	return c
}

func newV2Cipher(t *testing.T) *TokenCipher {
	t.Helper()
	c, err := NewTokenCipher(core.CipherConfig{
		Passphrase: testPassphrase,
		Salt:       testSaltHex,
		IV:         testIVHex,
	})
	if err != nil {
		t.Fatalf("new v2 cipher: %v", err)
	}
	return c
}

func TestDeriveKey_KnownAnswer(t *testing.T) {
	salt, _ := hex.DecodeString(testSaltHex)
	key := DeriveKey(testPassphrase, salt)
	if len(key) != KeySize {
		t.Fatalf("expected %d byte key, got %d", KeySize, len(key))
	}
	want := "ff5857eeab6c99f8407e154ab2bed8a7af9b800d2c1a7bd2ba90f4faa0cf4269"
	if got := hex.EncodeToString(key); got != want {
		t.Fatalf("expected derived key %s, got %s", want, got)
	}
}

func TestLegacyFormat_MatchesExistingCiphertext(t *testing.T) {
	c := newLegacyCipher(t)

	encrypted, err := c.Encrypt("abc123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if encrypted != "yssl9H4vkuKUvxMghQNxUA==" {
		t.Fatalf("expected fixed-iv ciphertext to be stable, got %q", encrypted)
	}

	decrypted, err := c.Decrypt("yssl9H4vkuKUvxMghQNxUA==")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if decrypted != "abc123" {
		t.Fatalf("expected abc123, got %q", decrypted)
	}
}

func TestV2Format_RoundTripWithRandomIV(t *testing.T) {
	c := newV2Cipher(t)

	first, err := c.Encrypt("abc123")
	if err != nil {
		t.Fatalf("encrypt first: %v", err)
	}
	second, err := c.Encrypt("abc123")
	if err != nil {
		t.Fatalf("encrypt second: %v", err)
	}
	if !strings.HasPrefix(first, envelopePrefixV2) {
		t.Fatalf("expected v2 prefix, got %q", first)
	}
	if first == second {
		t.Fatalf("expected per-value iv to produce distinct ciphertexts")
	}

	for _, value := range []string{first, second} {
		decrypted, err := c.Decrypt(value)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if decrypted != "abc123" {
			t.Fatalf("expected abc123, got %q", decrypted)
		}
	}
}

func TestV2Cipher_ReadsLegacyValues(t *testing.T) {
	c := newV2Cipher(t)
	if !c.NeedsRewrap("yssl9H4vkuKUvxMghQNxUA==") {
		t.Fatalf("expected legacy value to need rewrap")
	}

	rewrapped, err := c.Rewrap("yssl9H4vkuKUvxMghQNxUA==")
	if err != nil {
		t.Fatalf("rewrap: %v", err)
	}
	if c.NeedsRewrap(rewrapped) {
		t.Fatalf("expected rewrapped value to use v2")
	}
	decrypted, err := c.Decrypt(rewrapped)
	if err != nil {
		t.Fatalf("decrypt rewrapped: %v", err)
	}
	if decrypted != "abc123" {
		t.Fatalf("expected abc123, got %q", decrypted)
	}
}

func TestEncryptPair_OmitsMissingRefreshToken(t *testing.T) {
	for name, c := range map[string]*TokenCipher{
		"legacy": newLegacyCipher(t),
		"v2":     newV2Cipher(t),
	} {
		t.Run(name, func(t *testing.T) {
			pair, err := c.EncryptPair("access-token", nil)
			if err != nil {
				t.Fatalf("encrypt pair: %v", err)
			}
			if pair.RefreshToken != nil {
				t.Fatalf("expected refresh token to be omitted")
			}
			decrypted, err := c.DecryptPair(pair)
			if err != nil {
				t.Fatalf("decrypt pair: %v", err)
			}
			if decrypted.Token != "access-token" || decrypted.RefreshToken != nil {
				t.Fatalf("unexpected pair round trip: %#v", decrypted)
			}

			refresh := "refresh-token"
			pair, err = c.EncryptPair("access-token", &refresh)
			if err != nil {
				t.Fatalf("encrypt pair with refresh: %v", err)
			}
			if pair.RefreshToken == nil || *pair.RefreshToken == refresh {
				t.Fatalf("expected encrypted refresh token")
			}
			decrypted, err = c.DecryptPair(pair)
			if err != nil {
				t.Fatalf("decrypt pair with refresh: %v", err)
			}
			if decrypted.Token != "access-token" {
				t.Fatalf("expected access-token, got %q", decrypted.Token)
			}
			if decrypted.RefreshToken == nil || *decrypted.RefreshToken != refresh {
				t.Fatalf("expected refresh token round trip, got %#v", decrypted.RefreshToken)
			}
		})
	}
}

func TestDecrypt_FailuresAreCredentialsInvalid(t *testing.T) {
	c := newV2Cipher(t)

	cases := map[string]string{
		"malformed base64": "not base64!!",
		"short v2 payload": envelopePrefixV2 + "AAAA",
		"empty":            "",
		// "abc123" encrypted with a key derived from "another passphrase".
		"wrong key": "gesPA11QZGktqBI9LnychQ==",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := c.Decrypt(value); err == nil {
				t.Fatalf("expected decrypt error")
			} else if !core.IsTextCode(err, core.IntegrationErrorCredentials) {
				t.Fatalf("expected credentials invalid text code, got %v", err)
			}
		})
	}
}

func TestDecrypt_TamperedCiphertextRejected(t *testing.T) {
	c := newLegacyCipher(t)
	_, err := c.Decrypt("zssl9H4vkuKUvxMghQNxUA==")
	if err == nil {
		t.Fatalf("expected tampered ciphertext to fail")
	}
	if !errors.Is(err, ErrCiphertextInvalid) {
		t.Fatalf("expected ErrCiphertextInvalid, got %v", err)
	}
}

func TestNewTokenCipher_Validation(t *testing.T) {
	if _, err := NewTokenCipher(core.CipherConfig{}); err == nil {
		t.Fatalf("expected missing passphrase to fail")
	}
	if _, err := NewTokenCipher(core.CipherConfig{Passphrase: "p", Salt: "zz"}); err == nil {
		t.Fatalf("expected non-hex salt to fail")
	}
	if _, err := NewTokenCipher(core.CipherConfig{
		Passphrase: "p",
		Salt:       testSaltHex,
		Format:     core.CipherFormatLegacy,
	}); err == nil {
		t.Fatalf("expected legacy format without iv to fail")
	}
	if _, err := NewTokenCipherFromKey(bytes.Repeat([]byte{1}, 16), nil); err == nil {
		t.Fatalf("expected short key to fail")
	}
}

func TestV2Cipher_UsesInjectedRandom(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	c, err := NewTokenCipherFromKey(key, nil, WithRandom(bytes.NewReader(bytes.Repeat([]byte{9}, 32))))
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	encrypted, err := c.Encrypt("abc123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	env, err := decodeEnvelope(encrypted, 16)
	if err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !bytes.Equal(env.IV, bytes.Repeat([]byte{9}, 16)) {
		t.Fatalf("expected injected iv, got %x", env.IV)
	}
}
