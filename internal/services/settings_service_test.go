package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/referral-ledger/internal/model"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSettingStore is a map-backed SettingRepository that counts reads,
// so tests can observe whether a Get was served from the cache.
type fakeSettingStore struct {
	mu     sync.Mutex
	values map[string]string
	reads  int
}

func newFakeSettingStore(values map[string]string) *fakeSettingStore {
	if values == nil {
		values = make(map[string]string)
	}
	return &fakeSettingStore{values: values}
}

func (f *fakeSettingStore) Get(ctx context.Context, key string) (*model.Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	v, ok := f.values[key]
	if !ok {
		return nil, repository.ErrSettingNotFound
	}
	return &model.Setting{Key: key, Value: v}, nil
}

func (f *fakeSettingStore) Upsert(ctx context.Context, setting *model.Setting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[setting.Key] = setting.Value
	return nil
}

func (f *fakeSettingStore) List(ctx context.Context) ([]*model.Setting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.Setting, 0, len(f.values))
	for k, v := range f.values {
		out = append(out, &model.Setting{Key: k, Value: v})
	}
	return out, nil
}

func (f *fakeSettingStore) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// newTestSettings builds a SettingsService over a map-backed store. The
// cashback/referral/account tests use it as their settings fixture.
func newTestSettings(values map[string]string) *SettingsService {
	return NewSettingsService(newFakeSettingStore(values))
}

func TestSettingsService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("present value is cached after first read", func(t *testing.T) {
		store := newFakeSettingStore(map[string]string{SettingCashbackPercentage: "10"})
		svc := NewSettingsService(store)

		assert.Equal(t, "10", svc.Get(ctx, SettingCashbackPercentage, "5"))
		assert.Equal(t, "10", svc.Get(ctx, SettingCashbackPercentage, "5"))
		assert.Equal(t, 1, store.readCount())
	})

	t.Run("absent key serves the default and is not cached", func(t *testing.T) {
		store := newFakeSettingStore(nil)
		svc := NewSettingsService(store)

		assert.Equal(t, "5", svc.Get(ctx, SettingCashbackPercentage, "5"))
		assert.Equal(t, "5", svc.Get(ctx, SettingCashbackPercentage, "5"))
		// Each miss goes back to storage, so a later insert is picked up.
		assert.Equal(t, 2, store.readCount())

		require.NoError(t, store.Upsert(ctx, &model.Setting{Key: SettingCashbackPercentage, Value: "7"}))
		assert.Equal(t, "7", svc.Get(ctx, SettingCashbackPercentage, "5"))
	})

	t.Run("cached value stays stale after an out-of-band write", func(t *testing.T) {
		store := newFakeSettingStore(map[string]string{SettingProgramEnabled: "true"})
		svc := NewSettingsService(store)

		assert.Equal(t, "true", svc.Get(ctx, SettingProgramEnabled, "true"))

		store.values[SettingProgramEnabled] = "false"
		assert.Equal(t, "true", svc.Get(ctx, SettingProgramEnabled, "true"))

		svc.ClearCache()
		assert.Equal(t, "false", svc.Get(ctx, SettingProgramEnabled, "true"))
	})

	t.Run("set writes through the cache", func(t *testing.T) {
		store := newFakeSettingStore(map[string]string{SettingCashbackPercentage: "5"})
		svc := NewSettingsService(store)

		assert.Equal(t, "5", svc.Get(ctx, SettingCashbackPercentage, "5"))

		require.NoError(t, svc.Set(ctx, SettingCashbackPercentage, "12", ""))
		assert.Equal(t, "12", svc.Get(ctx, SettingCashbackPercentage, "5"))
		assert.Equal(t, "12", store.values[SettingCashbackPercentage])
	})

	t.Run("ttl expiry reloads from storage", func(t *testing.T) {
		store := newFakeSettingStore(map[string]string{SettingCashbackPercentage: "5"})

		now := time.Unix(1_700_000_000, 0)
		clock := func() time.Time { return now }
		svc := NewSettingsService(store, WithClock(clock), WithTTL(time.Minute))

		assert.Equal(t, "5", svc.Get(ctx, SettingCashbackPercentage, "5"))

		store.values[SettingCashbackPercentage] = "9"
		now = now.Add(30 * time.Second)
		assert.Equal(t, "5", svc.Get(ctx, SettingCashbackPercentage, "5"))

		now = now.Add(31 * time.Second)
		assert.Equal(t, "9", svc.Get(ctx, SettingCashbackPercentage, "5"))
	})
}

func TestSettingsService_TypedGetters(t *testing.T) {
	ctx := context.Background()

	t.Run("bool", func(t *testing.T) {
		svc := newTestSettings(map[string]string{SettingProgramEnabled: "false"})
		assert.False(t, svc.GetBool(ctx, SettingProgramEnabled, true))
		assert.True(t, svc.GetBool(ctx, "referral.other_flag", true))
	})

	t.Run("malformed bool falls back to default", func(t *testing.T) {
		svc := newTestSettings(map[string]string{SettingProgramEnabled: "yes please"})
		assert.True(t, svc.GetBool(ctx, SettingProgramEnabled, true))
	})

	t.Run("int64", func(t *testing.T) {
		svc := newTestSettings(map[string]string{SettingMaxCashbackPerTxn: "5000"})
		assert.Equal(t, int64(5000), svc.GetInt64(ctx, SettingMaxCashbackPerTxn, 0))
		assert.Equal(t, int64(0), svc.GetInt64(ctx, SettingMinCashbackAmount, 0))
	})

	t.Run("decimal", func(t *testing.T) {
		svc := newTestSettings(map[string]string{SettingCashbackPercentage: "7.5"})
		got := svc.GetDecimal(ctx, SettingCashbackPercentage, decimal.NewFromInt(5))
		assert.True(t, got.Equal(decimal.RequireFromString("7.5")))
	})

	t.Run("malformed decimal falls back to default", func(t *testing.T) {
		svc := newTestSettings(map[string]string{SettingCashbackPercentage: "ten percent"})
		got := svc.GetDecimal(ctx, SettingCashbackPercentage, decimal.NewFromInt(5))
		assert.True(t, got.Equal(decimal.NewFromInt(5)))
	})
}
