package shortener

import (
	"context"
	"math/rand"

	"github.com/wesleyorama2/shortload/internal/performance"
)

// StandardUser creates short URLs, follows them and reads their stats.
//
// The user owns the ids it created; the list only grows through creates
// that passed their check. A StandardUser must be driven by one goroutine.
type StandardUser struct {
	rec    performance.Recorder
	rng    *rand.Rand
	client *Client
	opts   Options

	ids   []string
	tasks []performance.Task
}

// NewStandardUser builds a user that reports to rec and draws randomness
// from rng.
func NewStandardUser(rec performance.Recorder, rng *rand.Rand, client *Client, opts Options) *StandardUser {
	u := &StandardUser{
		rec:    rec,
		rng:    rng,
		client: client,
		opts:   opts,
	}
	u.tasks = []performance.Task{
		{Name: "create", Weight: opts.Weights.Create, Run: u.Create},
		{Name: "redirect", Weight: opts.Weights.Redirect, Run: u.Redirect},
		{Name: "stats", Weight: opts.Weights.Stats, Run: u.Stats},
	}
	return u
}

// OnStart seeds the id list with SeedURLs creates.
func (u *StandardUser) OnStart(ctx context.Context) {
	for i := 0; i < u.opts.SeedURLs; i++ {
		if ctx.Err() != nil {
			return
		}
		u.Create(ctx)
	}
}

// Tasks implements performance.Behavior.
func (u *StandardUser) Tasks() []performance.Task {
	return u.tasks
}

// IDs returns a copy of the ids created so far.
func (u *StandardUser) IDs() []string {
	return append([]string(nil), u.ids...)
}

// Create shortens a random long URL.
func (u *StandardUser) Create(ctx context.Context) {
	resp, err := u.client.Create(ctx, GenerateLongURL(u.rng))
	if err != nil {
		u.transportFailure(ctx, NameCreate, resp, err)
		return
	}

	id, failure := CheckCreate(resp)
	if failure == "" && u.opts.schema != nil {
		failure = u.opts.schema.CheckCreate(resp.Body)
	}
	if failure == "" {
		u.ids = append(u.ids, id)
	}
	u.record(NameCreate, resp, failure)
}

// Redirect follows one of the user's short URLs. A user with no ids
// creates one instead.
func (u *StandardUser) Redirect(ctx context.Context) {
	if len(u.ids) == 0 {
		u.Create(ctx)
		return
	}

	resp, err := u.client.Redirect(ctx, u.pick())
	if err != nil {
		u.transportFailure(ctx, NameRedirect, resp, err)
		return
	}
	u.record(NameRedirect, resp, CheckRedirect(resp, u.opts.RedirectThreshold))
}

// Stats reads the click count of one of the user's short URLs. It does
// nothing for a user with no ids.
func (u *StandardUser) Stats(ctx context.Context) {
	if len(u.ids) == 0 {
		return
	}

	resp, err := u.client.Stats(ctx, u.pick())
	if err != nil {
		u.transportFailure(ctx, NameStats, resp, err)
		return
	}

	failure := CheckStats(resp)
	if failure == "" && u.opts.schema != nil {
		failure = u.opts.schema.CheckStats(resp.Body)
	}
	u.record(NameStats, resp, failure)
}

func (u *StandardUser) pick() string {
	return u.ids[u.rng.Intn(len(u.ids))]
}

func (u *StandardUser) record(name string, resp *Response, failure string) {
	u.rec.Record(performance.Sample{
		Name:     name,
		Duration: resp.Elapsed,
		Bytes:    int64(len(resp.Body)),
		Passed:   failure == "",
		Failure:  failure,
		Checked:  true,
	})
}

// transportFailure records a request that got no response. Requests cut
// short by the run ending are not recorded.
func (u *StandardUser) transportFailure(ctx context.Context, name string, resp *Response, err error) {
	if ctx.Err() != nil {
		return
	}
	u.rec.Record(performance.Sample{
		Name:     name,
		Duration: resp.Elapsed,
		Failure:  err.Error(),
		Checked:  true,
	})
}

var _ performance.Behavior = (*StandardUser)(nil)
