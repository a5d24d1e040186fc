package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/nimasrn/referral-ledger/pkg/logger"
	"github.com/shopspring/decimal"
)

// Keys of the referral program settings.
const (
	SettingProgramEnabled     = "referral.program_enabled"
	SettingCashbackPercentage = "referral.cashback_percentage"
	SettingMinCashbackAmount  = "referral.min_cashback_amount"
	SettingMaxCashbackPerTxn  = "referral.max_cashback_per_transaction"
	SettingShareBaseURL       = "referral.share_base_url"
)

// Defaults used when a key has never been persisted.
const (
	DefaultProgramEnabled     = "true"
	DefaultCashbackPercentage = "5"
	DefaultMinCashbackAmount  = "0"
	DefaultMaxCashbackPerTxn  = "0" // 0 disables the cap
	DefaultShareBaseURL       = "https://app.example.com/signup"
)

type SettingRepository interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	Upsert(ctx context.Context, setting *model.Setting) error
	List(ctx context.Context) ([]*model.Setting, error)
}

type settingsCacheEntry struct {
	value    string
	cachedAt time.Time
}

// SettingsService reads configuration through a process-wide cache.
// The cache is populated lazily and dropped only by ClearCache or a
// write through Set; a value written to storage behind its back stays
// stale until then. That staleness window is intentional.
type SettingsService struct {
	repo SettingRepository
	now  func() time.Time
	ttl  time.Duration // 0 caches until ClearCache

	mu    sync.RWMutex
	cache map[string]settingsCacheEntry
}

type SettingsOption func(*SettingsService)

// WithClock injects the time source used for TTL expiry.
func WithClock(now func() time.Time) SettingsOption {
	return func(s *SettingsService) {
		s.now = now
	}
}

// WithTTL bounds how long a cached entry is served before the next Get
// reloads it from storage.
func WithTTL(ttl time.Duration) SettingsOption {
	return func(s *SettingsService) {
		s.ttl = ttl
	}
}

func NewSettingsService(repo SettingRepository, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{
		repo:  repo,
		now:   time.Now,
		cache: make(map[string]settingsCacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value for key, loading and caching it on a
// miss. Absent keys and storage errors yield def; only present values
// are cached.
func (s *SettingsService) Get(ctx context.Context, key, def string) string {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()

	if ok && !s.expired(entry) {
		return entry.value
	}

	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingNotFound) {
			logger.Warn("settings: load failed, serving default", "key", key, "error", err)
		}
		return def
	}

	s.mu.Lock()
	s.cache[key] = settingsCacheEntry{value: setting.Value, cachedAt: s.now()}
	s.mu.Unlock()

	return setting.Value
}

func (s *SettingsService) GetBool(ctx context.Context, key string, def bool) bool {
	raw := s.Get(ctx, key, strconv.FormatBool(def))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn("settings: malformed bool, serving default", "key", key, "value", raw)
		return def
	}
	return v
}

func (s *SettingsService) GetInt64(ctx context.Context, key string, def int64) int64 {
	raw := s.Get(ctx, key, strconv.FormatInt(def, 10))
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Warn("settings: malformed int, serving default", "key", key, "value", raw)
		return def
	}
	return v
}

func (s *SettingsService) GetDecimal(ctx context.Context, key string, def decimal.Decimal) decimal.Decimal {
	raw := s.Get(ctx, key, def.String())
	v, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Warn("settings: malformed decimal, serving default", "key", key, "value", raw)
		return def
	}
	return v
}

// Set persists the value and writes it through the cache, so a
// subsequent Get in this process observes it immediately.
func (s *SettingsService) Set(ctx context.Context, key, value, description string) error {
	err := s.repo.Upsert(ctx, &model.Setting{
		Key:         key,
		Value:       value,
		Description: description,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[key] = settingsCacheEntry{value: value, cachedAt: s.now()}
	s.mu.Unlock()

	return nil
}

// ClearCache drops every cached entry, forcing the next Get of each key
// to reload from storage.
func (s *SettingsService) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]settingsCacheEntry)
	s.mu.Unlock()
}

func (s *SettingsService) List(ctx context.Context) ([]*model.Setting, error) {
	return s.repo.List(ctx)
}

func (s *SettingsService) expired(entry settingsCacheEntry) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(entry.cachedAt) > s.ttl
}
