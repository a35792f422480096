package shortener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/shortload/internal/mockserver"
)

func newStandardUser(t *testing.T, h http.Handler, opts Options) (*StandardUser, *recorder, *countingServer) {
	t.Helper()
	srv := newCountingServer(h)
	t.Cleanup(srv.Close)

	rec := &recorder{}
	return NewStandardUser(rec, seeded(), newTestClient(srv.URL), opts), rec, srv
}

func TestStandardUser_OnStartSeedsURLs(t *testing.T) {
	u, rec, srv := newStandardUser(t, mockserver.New(mockserver.NewStore(), mockserver.Options{}), DefaultOptions())

	u.OnStart(context.Background())

	assert.Len(t, u.IDs(), 5)
	assert.Equal(t, 5, srv.count("POST /api/v1/urls/"))
	for _, s := range rec.byName(NameCreate) {
		assert.True(t, s.Passed, s.Failure)
		assert.True(t, s.Checked)
	}
}

func TestStandardUser_Create(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		body        string
		wantIDs     int
		wantFailure string
	}{
		{name: "created", status: http.StatusCreated, body: `{"data":{"shortUrlId":"abc"}}`, wantIDs: 1},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantFailure: "Expected 201, got 500"},
		{name: "no id", status: http.StatusCreated, body: `{"data":{}}`, wantFailure: "No shortUrlId in response"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var contentType string
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				contentType = r.Header.Get("Content-Type")
				w.WriteHeader(testCase.status)
				_, _ = w.Write([]byte(testCase.body))
			})
			u, rec, _ := newStandardUser(t, h, DefaultOptions())

			u.Create(context.Background())

			assert.Equal(t, "application/json", contentType)
			assert.Len(t, u.IDs(), testCase.wantIDs)
			samples := rec.byName(NameCreate)
			require.Len(t, samples, 1)
			assert.Equal(t, testCase.wantFailure == "", samples[0].Passed)
			assert.Equal(t, testCase.wantFailure, samples[0].Failure)
		})
	}
}

func TestStandardUser_RedirectWithoutIDsCreates(t *testing.T) {
	u, rec, srv := newStandardUser(t, mockserver.New(mockserver.NewStore(), mockserver.Options{}), DefaultOptions())

	u.Redirect(context.Background())

	assert.Equal(t, 1, srv.total(), "only the create request is sent")
	assert.Equal(t, 1, srv.count("POST /api/v1/urls/"))
	assert.Len(t, u.IDs(), 1)
	assert.Empty(t, rec.byName(NameRedirect))
}

func TestStandardUser_Redirect(t *testing.T) {
	store := mockserver.NewStore()
	u, rec, _ := newStandardUser(t, mockserver.New(store, mockserver.Options{}), DefaultOptions())
	u.Create(context.Background())
	require.Len(t, u.IDs(), 1)

	u.Redirect(context.Background())

	samples := rec.byName(NameRedirect)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Passed, samples[0].Failure)

	e, ok := store.Get(u.IDs()[0])
	require.True(t, ok)
	assert.Equal(t, int64(1), e.Clicks)
}

func TestStandardUser_RedirectNotFound(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"shortUrlId":"gone"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	u, rec, _ := newStandardUser(t, h, DefaultOptions())
	u.Create(context.Background())

	u.Redirect(context.Background())

	samples := rec.byName(NameRedirect)
	require.Len(t, samples, 1)
	assert.False(t, samples[0].Passed)
	assert.Equal(t, "URL not found", samples[0].Failure)
}

func TestStandardUser_RedirectTooSlow(t *testing.T) {
	store := mockserver.NewStore()
	opts := DefaultOptions()
	opts.RedirectThreshold = 0
	u, rec, _ := newStandardUser(t, mockserver.New(store, mockserver.Options{}), opts)
	u.Create(context.Background())

	u.Redirect(context.Background())

	samples := rec.byName(NameRedirect)
	require.Len(t, samples, 1)
	assert.True(t, strings.HasPrefix(samples[0].Failure, "Redirect too slow: "), samples[0].Failure)
}

func TestStandardUser_StatsWithoutIDsIsNoop(t *testing.T) {
	u, rec, srv := newStandardUser(t, mockserver.New(mockserver.NewStore(), mockserver.Options{}), DefaultOptions())

	u.Stats(context.Background())

	assert.Equal(t, 0, srv.total())
	assert.Empty(t, rec.samples)
}

func TestStandardUser_Stats(t *testing.T) {
	u, rec, srv := newStandardUser(t, mockserver.New(mockserver.NewStore(), mockserver.Options{}), DefaultOptions())
	u.Create(context.Background())
	id := u.IDs()[0]

	u.Stats(context.Background())

	assert.Equal(t, 1, srv.count("GET /api/v1/urls/"+id))
	samples := rec.byName(NameStats)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Passed, samples[0].Failure)
	assert.Positive(t, samples[0].Bytes)
}

func TestStandardUser_StrictSchema(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"shortUrlId":"id1"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"clickCount":"many"}}`))
	})

	v, err := NewSchemaValidator()
	require.NoError(t, err)
	opts := DefaultOptions()
	opts.schema = v

	u, rec, _ := newStandardUser(t, h, opts)
	u.Create(context.Background())
	u.Stats(context.Background())

	samples := rec.byName(NameStats)
	require.Len(t, samples, 1)
	assert.False(t, samples[0].Passed)
	assert.True(t, strings.HasPrefix(samples[0].Failure, "Schema validation failed: "), samples[0].Failure)
}

func TestStandardUser_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	rec := &recorder{}
	u := NewStandardUser(rec, seeded(), newTestClient(baseURL), DefaultOptions())
	u.Create(context.Background())

	require.Len(t, rec.samples, 1)
	assert.False(t, rec.samples[0].Passed)
	assert.NotEmpty(t, rec.samples[0].Failure)
	assert.Empty(t, u.IDs())
}

func TestStandardUser_CancelledRequestsAreNotRecorded(t *testing.T) {
	u, rec, _ := newStandardUser(t, mockserver.New(mockserver.NewStore(), mockserver.Options{}), DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u.Create(ctx)

	assert.Empty(t, rec.samples)
}

func TestStandardUser_Tasks(t *testing.T) {
	u := NewStandardUser(&recorder{}, seeded(), newTestClient("http://localhost"), DefaultOptions())

	weights := make(map[string]int)
	for _, task := range u.Tasks() {
		weights[task.Name] = task.Weight
	}
	assert.Equal(t, map[string]int{"create": 3, "redirect": 7, "stats": 1}, weights)
}
