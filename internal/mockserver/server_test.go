package mockserver

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestClient(srv *httptest.Server) *resty.Client {
	return resty.New().
		SetBaseURL(srv.URL).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
}

func TestServer_CreateRedirectStats(t *testing.T) {
	store := NewStore()
	srv := httptest.NewServer(New(store, Options{}))
	defer srv.Close()
	client := newTestClient(srv)

	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"originalUrl": "https://example.com/a/b/c?param=1234"}`).
		Post("/api/v1/urls/")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	id := gjson.GetBytes(resp.Body(), "data.shortUrlId").String()
	require.NotEmpty(t, id)
	assert.Equal(t, 1, store.Len())

	for i := 0; i < 2; i++ {
		resp, err := client.R().Get("/" + id)
		require.NoError(t, err)
		assert.Equal(t, http.StatusFound, resp.StatusCode())
		assert.Equal(t, "https://example.com/a/b/c?param=1234", resp.Header().Get("Location"))
	}

	resp, err = client.R().Get("/api/v1/urls/" + id)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, int64(2), gjson.GetBytes(resp.Body(), "data.clickCount").Int())
}

func TestServer_Errors(t *testing.T) {
	srv := httptest.NewServer(New(NewStore(), Options{}))
	defer srv.Close()
	client := newTestClient(srv)

	testCases := []struct {
		name         string
		method       string
		path         string
		body         string
		expectedCode int
	}{
		{name: "create with invalid JSON", method: http.MethodPost, path: "/api/v1/urls/", body: `{`, expectedCode: http.StatusBadRequest},
		{name: "create with relative URL", method: http.MethodPost, path: "/api/v1/urls/", body: `{"originalUrl": "/nope"}`, expectedCode: http.StatusBadRequest},
		{name: "create without URL", method: http.MethodPost, path: "/api/v1/urls/", body: `{}`, expectedCode: http.StatusBadRequest},
		{name: "stats of unknown id", method: http.MethodGet, path: "/api/v1/urls/missing", expectedCode: http.StatusNotFound},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req := client.R()
			if testCase.body != "" {
				req.SetHeader("Content-Type", "application/json").SetBody(testCase.body)
			}
			resp, err := req.Execute(testCase.method, testCase.path)
			require.NoError(t, err)
			assert.Equal(t, testCase.expectedCode, resp.StatusCode())
		})
	}
}

func TestServer_RedirectUnknown(t *testing.T) {
	srv := httptest.NewServer(New(NewStore(), Options{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RedirectOptions(t *testing.T) {
	store := NewStore()
	id := store.Insert("https://example.com/x")
	srv := httptest.NewServer(New(store, Options{RedirectDelay: 60 * time.Millisecond, RedirectStatus: http.StatusMovedPermanently}))
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	start := time.Now()
	resp, err := client.Get(srv.URL + "/" + id)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestStore_Concurrent(t *testing.T) {
	store := NewStore()
	id := store.Insert("https://example.com/")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Insert("https://example.com/")
			store.Visit(id)
		}()
	}
	wg.Wait()

	e, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, int64(50), e.Clicks)
	assert.Equal(t, 51, store.Len())
}
