package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	CipherFormatLegacy = "legacy"
	CipherFormatV2     = "v2"
)

type CipherConfig struct {
	Passphrase string `koanf:"passphrase" mapstructure:"passphrase"`
	// Salt and IV are hex encoded. IV is only used by the legacy format.
	Salt   string `koanf:"salt" mapstructure:"salt"`
	IV     string `koanf:"iv" mapstructure:"iv"`
	Format string `koanf:"format" mapstructure:"format"`
}

func (c CipherConfig) Configured() bool {
	return strings.TrimSpace(c.Passphrase) != ""
}

func (c CipherConfig) Validate() error {
	format := strings.TrimSpace(strings.ToLower(c.Format))
	if format != "" && format != CipherFormatLegacy && format != CipherFormatV2 {
		return fmt.Errorf("core: cipher format %q is invalid", c.Format)
	}
	if !c.Configured() {
		return nil
	}
	if strings.TrimSpace(c.Salt) == "" {
		return fmt.Errorf("core: cipher salt is required")
	}
	if _, err := hex.DecodeString(strings.TrimSpace(c.Salt)); err != nil {
		return fmt.Errorf("core: cipher salt must be hex encoded")
	}
	if iv := strings.TrimSpace(c.IV); iv != "" {
		raw, err := hex.DecodeString(iv)
		if err != nil || len(raw) != 16 {
			return fmt.Errorf("core: cipher iv must be 16 hex encoded bytes")
		}
	} else if format == CipherFormatLegacy {
		return fmt.Errorf("core: cipher iv is required for the legacy format")
	}
	return nil
}

type ZoomConfig struct {
	WebhookSecret string `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	// TimestampToleranceSeconds rejects stale deliveries when positive.
	TimestampToleranceSeconds int `koanf:"timestamp_tolerance_seconds" mapstructure:"timestamp_tolerance_seconds"`
}

const (
	CredentialStoreDriverGraphQL = "graphql"
	CredentialStoreDriverSQL     = "sql"
)

// CredentialStoreConfig selects and configures the credential store. Endpoint,
// AdminSecret, Table and Constraint apply to the graphql driver; DSN,
// SQLDialect and CacheTTLSeconds to the sql driver.
type CredentialStoreConfig struct {
	Driver          string `koanf:"driver" mapstructure:"driver"`
	Endpoint        string `koanf:"endpoint" mapstructure:"endpoint"`
	AdminSecret     string `koanf:"admin_secret" mapstructure:"admin_secret"`
	Table           string `koanf:"table" mapstructure:"table"`
	Constraint      string `koanf:"constraint" mapstructure:"constraint"`
	TimeoutSeconds  int    `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	DSN             string `koanf:"dsn" mapstructure:"dsn"`
	SQLDialect      string `koanf:"sql_dialect" mapstructure:"sql_dialect"`
	CacheTTLSeconds int    `koanf:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
}

type ProviderConfig struct {
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string   `koanf:"client_secret" mapstructure:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" mapstructure:"redirect_uri"`
	Scopes       []string `koanf:"scopes" mapstructure:"scopes"`
	Sandbox      bool     `koanf:"sandbox" mapstructure:"sandbox"`
}

type Config struct {
	ServiceName string `koanf:"service_name" mapstructure:"service_name"`
	// PlaintextServices lists services whose tokens may be stored without
	// encryption. Zoom tokens are always encrypted.
	PlaintextServices []string                  `koanf:"plaintext_services" mapstructure:"plaintext_services"`
	Cipher            CipherConfig              `koanf:"cipher" mapstructure:"cipher"`
	Zoom              ZoomConfig                `koanf:"zoom" mapstructure:"zoom"`
	CredentialStore   CredentialStoreConfig     `koanf:"credential_store" mapstructure:"credential_store"`
	Providers         map[string]ProviderConfig `koanf:"providers" mapstructure:"providers"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "integrations",
		Cipher: CipherConfig{
			Format: CipherFormatV2,
		},
		Zoom: ZoomConfig{
			TimestampToleranceSeconds: 0,
		},
		CredentialStore: CredentialStoreConfig{
			Driver:          CredentialStoreDriverGraphQL,
			Table:           "Calendar_Integration",
			Constraint:      "Calendar_Integration_userId_resource_key",
			TimeoutSeconds:  30,
			SQLDialect:      "postgres",
			CacheTTLSeconds: 60,
		},
		Providers: map[string]ProviderConfig{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if err := c.Cipher.Validate(); err != nil {
		return err
	}
	if c.Zoom.TimestampToleranceSeconds < 0 {
		return fmt.Errorf("core: zoom timestamp_tolerance_seconds must be >= 0")
	}
	if c.CredentialStore.TimeoutSeconds < 0 {
		return fmt.Errorf("core: credential_store timeout_seconds must be >= 0")
	}
	if c.CredentialStore.CacheTTLSeconds < 0 {
		return fmt.Errorf("core: credential_store cache_ttl_seconds must be >= 0")
	}
	switch strings.TrimSpace(strings.ToLower(c.CredentialStore.Driver)) {
	case "", CredentialStoreDriverGraphQL, CredentialStoreDriverSQL:
	default:
		return fmt.Errorf("core: credential_store driver %q is invalid", c.CredentialStore.Driver)
	}
	for id, provider := range c.Providers {
		if strings.TrimSpace(provider.ClientID) == "" {
			return fmt.Errorf("core: providers.%s client_id is required", id)
		}
		if strings.TrimSpace(provider.ClientSecret) == "" {
			return fmt.Errorf("core: providers.%s client_secret is required", id)
		}
	}
	return nil
}

// EncryptsService reports whether tokens for service must be encrypted at rest.
func (c Config) EncryptsService(service string) bool {
	service = strings.TrimSpace(strings.ToLower(service))
	if service == ServiceZoom {
		return true
	}
	for _, plaintext := range c.PlaintextServices {
		if strings.TrimSpace(strings.ToLower(plaintext)) == service {
			return false
		}
	}
	return true
}
