package shortener

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/wesleyorama2/shortload/internal/performance"
	"github.com/wesleyorama2/shortload/internal/performance/config"
)

// Weights are the relative frequencies of a standard user's tasks.
type Weights struct {
	Create   int
	Redirect int
	Stats    int
}

// Options tune the simulated users of one scenario.
type Options struct {
	Client ClientOptions

	// SeedURLs is how many URLs a standard user creates before its first task.
	SeedURLs int

	// PoolSize is how many popular URLs a cache-warmup user creates.
	PoolSize int

	RedirectThreshold time.Duration
	Weights           Weights

	// StrictSchema also validates create and stats bodies against a schema.
	StrictSchema bool

	schema *SchemaValidator
}

// DefaultOptions returns the stock user tuning.
func DefaultOptions() Options {
	return Options{
		SeedURLs:          5,
		PoolSize:          20,
		RedirectThreshold: DefaultRedirectThreshold,
		Weights:           Weights{Create: 3, Redirect: 7, Stats: 1},
	}
}

// WithProfileOptions overlays a scenario's options. Unset fields keep
// their current values.
func (o Options) WithProfileOptions(po *config.ProfileOptions) (Options, error) {
	if po == nil {
		return o, nil
	}

	if po.SeedURLs != nil {
		o.SeedURLs = *po.SeedURLs
	}
	if po.PoolSize > 0 {
		o.PoolSize = po.PoolSize
	}
	if po.RedirectThreshold != "" {
		d, err := config.ParseDurationString(po.RedirectThreshold)
		if err != nil {
			return o, fmt.Errorf("invalid redirectThreshold: %w", err)
		}
		o.RedirectThreshold = d
	}
	if w := po.Weights; w != nil {
		if w.Create != nil {
			o.Weights.Create = *w.Create
		}
		if w.Redirect != nil {
			o.Weights.Redirect = *w.Redirect
		}
		if w.Stats != nil {
			o.Weights.Stats = *w.Stats
		}
	}
	o.StrictSchema = o.StrictSchema || po.StrictSchema
	return o, nil
}

type newBehavior func(rec performance.Recorder, rng *rand.Rand, client *Client, opts Options) performance.Behavior

// Profile is a named kind of simulated user.
type Profile struct {
	Name        string
	Description string

	// Wait is the think time between a user's tasks.
	Wait performance.WaitRange

	build newBehavior
}

var profiles = map[string]Profile{
	config.ProfileStandard: {
		Name:        config.ProfileStandard,
		Description: "Creates short URLs, follows redirects and reads stats (3:7:1)",
		Wait:        performance.WaitRange{Min: 100 * time.Millisecond, Max: 500 * time.Millisecond},
		build:       standardBehavior,
	},
	config.ProfileHighLoad: {
		Name:        config.ProfileHighLoad,
		Description: "Standard user with aggressive pacing for stress tests",
		Wait:        performance.WaitRange{Min: 10 * time.Millisecond, Max: 100 * time.Millisecond},
		build:       standardBehavior,
	},
	config.ProfileCacheWarmup: {
		Name:        config.ProfileCacheWarmup,
		Description: "Creates a pool of popular URLs, then keeps requesting them",
		Wait:        performance.WaitRange{Min: 50 * time.Millisecond, Max: 200 * time.Millisecond},
		build:       warmupBehavior,
	},
}

func standardBehavior(rec performance.Recorder, rng *rand.Rand, client *Client, opts Options) performance.Behavior {
	return NewStandardUser(rec, rng, client, opts)
}

func warmupBehavior(rec performance.Recorder, rng *rand.Rand, client *Client, opts Options) performance.Behavior {
	return NewCacheWarmupUser(rec, rng, client, opts)
}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile: %s", name)
	}
	return p, nil
}

// Profiles returns every profile sorted by name.
func Profiles() []Profile {
	list := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Factory returns the per-VU constructor for this profile. Each VU gets its
// own API client over the VU's HTTP client and reports to the VU.
func (p Profile) Factory(opts Options) (performance.BehaviorFactory, error) {
	if opts.StrictSchema && opts.schema == nil {
		v, err := NewSchemaValidator()
		if err != nil {
			return nil, err
		}
		opts.schema = v
	}

	return func(vu *performance.VirtualUser) performance.Behavior {
		client := NewClient(vu.HTTPClient, opts.Client)
		return p.build(vu, vu.Rand(), client, opts)
	}, nil
}
