package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-integrations/core"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const credentialCacheKeyPrefix = "go-integrations::credential::v1"

// AccountLookup resolves which records an account-wide deauthorization
// touches, so their cache entries can be evicted.
type AccountLookup interface {
	FindByAppAccount(ctx context.Context, service string, appAccountID string) ([]core.CredentialKey, error)
}

// CachedCredentialStore serves Get from cache and evicts on every write.
// A failed eviction never fails a committed write: it is logged and the
// entry ages out with the cache TTL.
type CachedCredentialStore struct {
	base   core.CredentialStore
	cache  repositorycache.CacheService
	logger core.Logger
}

type CachedStoreOption func(*CachedCredentialStore)

// WithCacheLogger receives eviction failures.
func WithCacheLogger(logger core.Logger) CachedStoreOption {
	return func(s *CachedCredentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewCachedCredentialStore(
	base core.CredentialStore,
	cacheService repositorycache.CacheService,
	opts ...CachedStoreOption,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	store := &CachedCredentialStore{base: base, cache: cacheService, logger: glog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// CredentialCacheKey returns go-integrations::credential::v1::<service>::<user_id>
// with each segment URL-path escaped.
func CredentialCacheKey(key core.CredentialKey) (string, error) {
	normalized := key.Normalize()
	if err := normalized.Validate(); err != nil {
		return "", err
	}
	return strings.Join([]string{
		credentialCacheKeyPrefix,
		url.PathEscape(normalized.Service),
		url.PathEscape(normalized.UserID),
	}, "::"), nil
}

func (s *CachedCredentialStore) Get(ctx context.Context, userID string, service string) (core.CredentialRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	key := core.CredentialKey{UserID: userID, Service: service}.Normalize()
	cacheKey, err := CredentialCacheKey(key)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	record, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.CredentialRecord, error) {
		return s.base.Get(ctx, key.UserID, key.Service)
	})
	if err != nil {
		return core.CredentialRecord{}, err
	}
	return cloneRecord(record), nil
}

func (s *CachedCredentialStore) UpsertTokens(ctx context.Context, in core.UpsertTokensInput) (core.CredentialRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	record, err := s.base.UpsertTokens(ctx, in)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	s.evict(ctx, "upsert_tokens", record.Key())
	return record, nil
}

func (s *CachedCredentialStore) UpdateFields(ctx context.Context, id string, patch core.UpdateFieldsInput) (core.CredentialRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	record, err := s.base.UpdateFields(ctx, id, patch)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	s.evict(ctx, "update_fields", record.Key())
	return record, nil
}

func (s *CachedCredentialStore) Deauthorize(ctx context.Context, service string, appAccountID string) (int, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return 0, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	var keys []core.CredentialKey
	if lookup, ok := s.base.(AccountLookup); ok {
		found, err := lookup.FindByAppAccount(ctx, service, appAccountID)
		if err != nil {
			return 0, err
		}
		keys = found
	}
	affected, err := s.base.Deauthorize(ctx, service, appAccountID)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		s.evict(ctx, "deauthorize", key)
	}
	return affected, nil
}

func (s *CachedCredentialStore) DeauthorizeUser(ctx context.Context, userID string, service string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.DeauthorizeUser(ctx, userID, service); err != nil {
		return err
	}
	s.evict(ctx, "deauthorize_user", core.CredentialKey{UserID: userID, Service: service})
	return nil
}

// evict runs after the write has committed, so failures are only logged.
func (s *CachedCredentialStore) evict(ctx context.Context, operation string, key core.CredentialKey) {
	cacheKey, err := CredentialCacheKey(key)
	if err == nil {
		err = s.cache.Delete(ctx, cacheKey)
	}
	if err == nil {
		return
	}
	s.logger.WithContext(ctx).Warn("credential cache eviction failed",
		"operation", operation,
		"service", key.Service,
		"user_id", key.UserID,
		"error", err,
	)
}

func cloneRecord(record core.CredentialRecord) core.CredentialRecord {
	cloned := record
	cloned.AccessToken = cloneStringPointer(record.AccessToken)
	cloned.RefreshToken = cloneStringPointer(record.RefreshToken)
	cloned.ExpiresAt = cloneTimePointer(record.ExpiresAt)
	return cloned
}
