package shortener

import (
	"context"
	"math/rand"
	"net/http"

	"github.com/wesleyorama2/shortload/internal/performance"
)

// CacheWarmupUser creates a fixed pool of popular URLs and then keeps
// requesting them so the service's cache stays hot. Its requests carry no
// checks: they pass on any status below 400.
type CacheWarmupUser struct {
	rec    performance.Recorder
	rng    *rand.Rand
	client *Client
	opts   Options

	pool  []string
	tasks []performance.Task
}

// NewCacheWarmupUser builds a warmup user that reports to rec.
func NewCacheWarmupUser(rec performance.Recorder, rng *rand.Rand, client *Client, opts Options) *CacheWarmupUser {
	u := &CacheWarmupUser{
		rec:    rec,
		rng:    rng,
		client: client,
		opts:   opts,
	}
	u.tasks = []performance.Task{
		{Name: "access popular urls", Weight: 10, Run: u.AccessPopular},
	}
	return u
}

// OnStart creates PoolSize popular URLs one after another. Ids from 201
// responses carrying data.shortUrlId join the pool.
func (u *CacheWarmupUser) OnStart(ctx context.Context) {
	for i := 0; i < u.opts.PoolSize; i++ {
		if ctx.Err() != nil {
			return
		}

		resp, err := u.client.Create(ctx, PopularURL(i))
		u.record(ctx, NameCreate, resp, err)
		if err != nil || resp.StatusCode != http.StatusCreated {
			continue
		}
		if id, ok := shortURLID(resp.Body); ok {
			u.pool = append(u.pool, id)
		}
	}
}

// Tasks implements performance.Behavior.
func (u *CacheWarmupUser) Tasks() []performance.Task {
	return u.tasks
}

// Pool returns a copy of the popular ids.
func (u *CacheWarmupUser) Pool() []string {
	return append([]string(nil), u.pool...)
}

// AccessPopular requests a random pool member without following the
// redirect. It does nothing while the pool is empty.
func (u *CacheWarmupUser) AccessPopular(ctx context.Context) {
	if len(u.pool) == 0 {
		return
	}
	id := u.pool[u.rng.Intn(len(u.pool))]
	resp, err := u.client.Redirect(ctx, id)
	u.record(ctx, NameRedirect, resp, err)
}

func (u *CacheWarmupUser) record(ctx context.Context, name string, resp *Response, err error) {
	if err != nil && ctx.Err() != nil {
		return
	}
	failure := uncheckedFailure(resp, err)
	u.rec.Record(performance.Sample{
		Name:     name,
		Duration: resp.Elapsed,
		Bytes:    int64(len(resp.Body)),
		Passed:   failure == "",
		Failure:  failure,
	})
}

var _ performance.Behavior = (*CacheWarmupUser)(nil)
