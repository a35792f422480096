package shortener

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/shortload/internal/mockserver"
	"github.com/wesleyorama2/shortload/internal/performance"
	"github.com/wesleyorama2/shortload/internal/performance/config"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		wait performance.WaitRange
	}{
		{config.ProfileStandard, performance.WaitRange{Min: 100 * time.Millisecond, Max: 500 * time.Millisecond}},
		{config.ProfileHighLoad, performance.WaitRange{Min: 10 * time.Millisecond, Max: 100 * time.Millisecond}},
		{config.ProfileCacheWarmup, performance.WaitRange{Min: 50 * time.Millisecond, Max: 200 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.wait, p.Wait)
			assert.NotEmpty(t, p.Description)
		})
	}

	_, err := Lookup("locust")
	assert.Error(t, err)
}

func TestProfiles_Sorted(t *testing.T) {
	var names []string
	for _, p := range Profiles() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"cache-warmup", "high-load", "standard"}, names)
}

func TestOptions_WithProfileOptions(t *testing.T) {
	seed, create, stats := 0, 1, 0
	po := &config.ProfileOptions{
		SeedURLs:          &seed,
		PoolSize:          8,
		RedirectThreshold: "120ms",
		Weights:           &config.WeightsConfig{Create: &create, Stats: &stats},
		StrictSchema:      true,
	}

	opts, err := DefaultOptions().WithProfileOptions(po)
	require.NoError(t, err)

	assert.Equal(t, 0, opts.SeedURLs)
	assert.Equal(t, 8, opts.PoolSize)
	assert.Equal(t, 120*time.Millisecond, opts.RedirectThreshold)
	assert.Equal(t, Weights{Create: 1, Redirect: 7, Stats: 0}, opts.Weights)
	assert.True(t, opts.StrictSchema)

	same, err := DefaultOptions().WithProfileOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), same)

	_, err = DefaultOptions().WithProfileOptions(&config.ProfileOptions{RedirectThreshold: "fast"})
	assert.Error(t, err)
}

func TestProfile_Factory(t *testing.T) {
	srv := httptest.NewServer(mockserver.New(mockserver.NewStore(), mockserver.Options{}))
	defer srv.Close()

	engine := metrics.NewEngine()
	defer engine.Stop()

	opts := DefaultOptions()
	opts.Client.BaseURL = srv.URL
	opts.StrictSchema = true

	tests := []struct {
		profile string
		check   func(t *testing.T, b performance.Behavior)
	}{
		{config.ProfileStandard, func(t *testing.T, b performance.Behavior) {
			u, ok := b.(*StandardUser)
			require.True(t, ok)
			assert.NotNil(t, u.opts.schema)
			assert.GreaterOrEqual(t, len(u.IDs()), 5)
		}},
		{config.ProfileHighLoad, func(t *testing.T, b performance.Behavior) {
			_, ok := b.(*StandardUser)
			assert.True(t, ok)
		}},
		{config.ProfileCacheWarmup, func(t *testing.T, b performance.Behavior) {
			u, ok := b.(*CacheWarmupUser)
			require.True(t, ok)
			assert.Len(t, u.Pool(), 20)
		}},
	}

	client := performance.NewHTTPClient(performance.DefaultHTTPClientConfig())
	for i, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			p, err := Lookup(tt.profile)
			require.NoError(t, err)
			factory, err := p.Factory(opts)
			require.NoError(t, err)

			vu := performance.NewVirtualUser(i+1, 42, factory, client, engine)
			require.NoError(t, vu.RunIteration(context.Background()))
			tt.check(t, vu.Behavior())
		})
	}

	assert.Positive(t, engine.GetSnapshot().TotalRequests)
}
