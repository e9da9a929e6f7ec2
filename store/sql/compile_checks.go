package sqlstore

import "github.com/goliatone/go-integrations/core"

var (
	_ core.CredentialStore = (*CredentialStore)(nil)
	_ core.CredentialStore = (*CachedCredentialStore)(nil)
	_ AccountLookup        = (*CredentialStore)(nil)
)
