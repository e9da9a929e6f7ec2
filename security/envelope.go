package security

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// v2 values carry their own IV: enc.v2:<base64(iv || ciphertext)>.
// Legacy values are bare base64 ciphertext produced with the process IV.
const envelopePrefixV2 = "enc.v2:"

type envelope struct {
	Format     string
	IV         []byte
	Ciphertext []byte
}

type EnvelopeMetadata struct {
	Format    string
	HasPrefix bool
}

// ParseEnvelopeMetadata reports which format produced a stored value.
func ParseEnvelopeMetadata(value string) EnvelopeMetadata {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, envelopePrefixV2) {
		return EnvelopeMetadata{Format: core.CipherFormatV2, HasPrefix: true}
	}
	return EnvelopeMetadata{Format: core.CipherFormatLegacy}
}

func encodeEnvelope(env envelope) string {
	if env.Format == core.CipherFormatLegacy {
		return base64.StdEncoding.EncodeToString(env.Ciphertext)
	}
	payload := make([]byte, 0, len(env.IV)+len(env.Ciphertext))
	payload = append(payload, env.IV...)
	payload = append(payload, env.Ciphertext...)
	return envelopePrefixV2 + base64.StdEncoding.EncodeToString(payload)
}

func decodeEnvelope(value string, blockSize int) (envelope, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return envelope{}, fmt.Errorf("%w: empty value", ErrCiphertextInvalid)
	}
	if !strings.HasPrefix(trimmed, envelopePrefixV2) {
		raw, err := base64.StdEncoding.DecodeString(trimmed)
		if err != nil {
			return envelope{}, fmt.Errorf("%w: decode base64: %v", ErrCiphertextInvalid, err)
		}
		return envelope{Format: core.CipherFormatLegacy, Ciphertext: raw}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(trimmed, envelopePrefixV2))
	if err != nil {
		return envelope{}, fmt.Errorf("%w: decode base64: %v", ErrCiphertextInvalid, err)
	}
	if len(raw) < blockSize*2 {
		return envelope{}, fmt.Errorf("%w: payload too short", ErrCiphertextInvalid)
	}
	return envelope{
		Format:     core.CipherFormatV2,
		IV:         raw[:blockSize],
		Ciphertext: raw[blockSize:],
	}, nil
}
