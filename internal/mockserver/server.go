package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wesleyorama2/shortload/internal/logger"
)

// Options tune the mock service.
type Options struct {
	// RedirectDelay is added before every redirect, to exercise the
	// slow-redirect check.
	RedirectDelay time.Duration

	// RedirectStatus is 302 unless set to 301.
	RedirectStatus int
}

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type createRequest struct {
	OriginalURL string `json:"originalUrl"`
}

type createData struct {
	ShortURLID  string `json:"shortUrlId"`
	OriginalURL string `json:"originalUrl"`
}

type statsData struct {
	ShortURLID  string `json:"shortUrlId"`
	OriginalURL string `json:"originalUrl"`
	ClickCount  int64  `json:"clickCount"`
}

type handlers struct {
	store *Store
	opts  Options
}

// New returns the mock service router over store.
func New(store *Store, opts Options) *chi.Mux {
	if opts.RedirectStatus != http.StatusMovedPermanently {
		opts.RedirectStatus = http.StatusFound
	}
	h := &handlers{store: store, opts: opts}

	router := chi.NewRouter()
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Post(`/api/v1/urls/`, h.create)
	router.Get(`/api/v1/urls/{id}`, h.stats)
	router.Get(`/{id}`, h.redirect)

	return router
}

func (h *handlers) create(res http.ResponseWriter, req *http.Request) {
	var body createRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(res, http.StatusBadRequest, envelope{Error: "invalid JSON body"})
		return
	}

	u, err := url.ParseRequestURI(body.OriginalURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeJSON(res, http.StatusBadRequest, envelope{Error: "originalUrl must be an absolute http(s) URL"})
		return
	}

	id := h.store.Insert(body.OriginalURL)
	writeJSON(res, http.StatusCreated, envelope{Data: createData{ShortURLID: id, OriginalURL: body.OriginalURL}})
}

func (h *handlers) redirect(res http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	if h.opts.RedirectDelay > 0 {
		timer := time.NewTimer(h.opts.RedirectDelay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	target, ok := h.store.Visit(id)
	if !ok {
		writeJSON(res, http.StatusNotFound, envelope{Error: "short URL not found"})
		return
	}
	http.Redirect(res, req, target, h.opts.RedirectStatus)
}

func (h *handlers) stats(res http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	e, ok := h.store.Get(id)
	if !ok {
		writeJSON(res, http.StatusNotFound, envelope{Error: "short URL not found"})
		return
	}
	writeJSON(res, http.StatusOK, envelope{Data: statsData{ShortURLID: e.ID, OriginalURL: e.OriginalURL, ClickCount: e.Clicks}})
}

func writeJSON(res http.ResponseWriter, status int, v any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(v); err != nil {
		logger.Log.Debugw("writing response", "error", err)
	}
}

// ListenAndServe serves the mock on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, store *Store, opts Options) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           New(store, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Infow("mock server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
