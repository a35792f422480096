package performance

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

// ErrSchedulerShutdown is returned by RunIteration after Shutdown.
var ErrSchedulerShutdown = errors.New("scheduler is shut down")

// VUScheduler manages the lifecycle of Virtual Users.
//
// It provides:
// - VU pool management (spawning/stopping VUs)
// - Shared HTTP client configuration
// - Graceful shutdown coordination
//
// The scheduler is used by executors to control VU counts.
type VUScheduler struct {
	factory BehaviorFactory
	metrics *metrics.Engine

	httpClientConfig HTTPClientConfig

	// Seed is the base random seed. Zero means seed from the clock.
	seed int64

	vus   map[int]*VirtualUser
	vusMu sync.RWMutex

	nextVUID atomic.Int32

	sharedClient *http.Client

	// shutdownMu orders track against Shutdown so no Add races the Wait.
	shutdownMu   sync.Mutex
	shuttingDown bool
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup
}

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// Timeout for HTTP requests
	Timeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	DisableKeepAlives  bool
	DisableCompression bool

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool

	// UseSharedClient indicates whether VUs share a single HTTP client
	UseSharedClient bool
}

// DefaultHTTPClientConfig returns sensible defaults for load testing.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		UseSharedClient:     true,
	}
}

// NewVUScheduler creates a new VU scheduler. Every spawned VU gets its
// behavior from factory; seed 0 selects a time-based seed.
func NewVUScheduler(factory BehaviorFactory, metricsEngine *metrics.Engine, httpConfig HTTPClientConfig, seed int64) *VUScheduler {
	s := &VUScheduler{
		factory:          factory,
		metrics:          metricsEngine,
		httpClientConfig: httpConfig,
		seed:             seed,
		vus:              make(map[int]*VirtualUser),
		shutdownCh:       make(chan struct{}),
	}

	if httpConfig.UseSharedClient {
		s.sharedClient = NewHTTPClient(httpConfig)
	}

	return s
}

// NewHTTPClient builds a pooled client that never follows redirects, so
// redirect status codes reach the caller.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlives,
		DisableCompression:  cfg.DisableCompression,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// SpawnVU creates and registers a new Virtual User without starting it.
func (s *VUScheduler) SpawnVU() *VirtualUser {
	id := int(s.nextVUID.Add(1))

	client := s.sharedClient
	if client == nil {
		client = NewHTTPClient(s.httpClientConfig)
	}

	seed := time.Now().UnixNano() + int64(id)
	if s.seed != 0 {
		seed = s.seed + int64(id)
	}

	vu := NewVirtualUser(id, seed, s.factory, client, s.metrics)

	s.vusMu.Lock()
	s.vus[id] = vu
	s.vusMu.Unlock()

	return vu
}

// GetVU returns a VU by ID, or nil if not found.
func (s *VUScheduler) GetVU(id int) *VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()
	return s.vus[id]
}

// GetActiveVUs returns all VUs that have not stopped.
func (s *VUScheduler) GetActiveVUs() []*VirtualUser {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	result := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		if vu.GetState() != VUStateStopped {
			result = append(result, vu)
		}
	}
	return result
}

// GetActiveVUCount returns the count of VUs that are neither stopping nor
// stopped.
func (s *VUScheduler) GetActiveVUCount() int {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	count := 0
	for _, vu := range s.vus {
		st := vu.GetState()
		if st != VUStateStopped && st != VUStateStopping {
			count++
		}
	}
	return count
}

// StopVU requests a specific VU to stop.
func (s *VUScheduler) StopVU(id int) {
	if vu := s.GetVU(id); vu != nil {
		vu.RequestStop()
	}
}

// StopAllVUs requests all VUs to stop.
func (s *VUScheduler) StopAllVUs() {
	s.vusMu.RLock()
	defer s.vusMu.RUnlock()

	for _, vu := range s.vus {
		vu.RequestStop()
	}
}

// RemoveVU marks a VU stopped and forgets it.
func (s *VUScheduler) RemoveVU(id int) {
	s.vusMu.Lock()
	defer s.vusMu.Unlock()

	if vu, exists := s.vus[id]; exists {
		vu.MarkStopped()
		delete(s.vus, id)
	}
}

// WaitForAllVUs waits for all VUs to stop and returns how many did not stop
// within timeout.
func (s *VUScheduler) WaitForAllVUs(timeout time.Duration) int {
	deadline := time.Now().Add(timeout)

	s.vusMu.RLock()
	vus := make([]*VirtualUser, 0, len(s.vus))
	for _, vu := range s.vus {
		vus = append(vus, vu)
	}
	s.vusMu.RUnlock()

	notStopped := 0
	for _, vu := range vus {
		remaining := time.Until(deadline)
		if remaining <= 0 || !vu.WaitForStop(remaining) {
			notStopped++
		}
	}

	return notStopped
}

// RunVU runs iterations until the VU is stopped, the scheduler shuts down or
// ctx is cancelled. Between iterations the VU pauses for a duration drawn
// from pacing with the VU's own random source.
//
// The active VU gauge is raised for the lifetime of the call.
func (s *VUScheduler) RunVU(ctx context.Context, vu *VirtualUser, pacing WaitRange) {
	defer vu.MarkStopped()
	if !s.track() {
		return
	}
	defer s.shutdownWg.Done()

	if s.metrics != nil {
		s.metrics.AddActiveVUs(1)
		defer s.metrics.AddActiveVUs(-1)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCh:
			return
		default:
		}

		if st := vu.GetState(); st == VUStateStopping || st == VUStateStopped {
			return
		}

		if err := vu.RunIteration(ctx); err != nil {
			if ctx.Err() != nil || vu.GetState() == VUStateStopping {
				return
			}
		}

		if pacing.IsZero() {
			continue
		}
		if !s.pause(ctx, vu, pacing.Pick(vu.Rand())) {
			return
		}
	}
}

func (s *VUScheduler) pause(ctx context.Context, vu *VirtualUser, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-s.shutdownCh:
		return false
	case <-vu.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// RunIteration runs one iteration on vu while tracking it for Shutdown.
// Arrival-rate executors use it instead of RunVU.
func (s *VUScheduler) RunIteration(ctx context.Context, vu *VirtualUser) error {
	if !s.track() {
		return ErrSchedulerShutdown
	}
	defer s.shutdownWg.Done()
	return vu.RunIteration(ctx)
}

// track registers work with the shutdown wait group. It returns false once
// Shutdown has begun, in which case the caller must not run.
func (s *VUScheduler) track() bool {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if s.shuttingDown {
		return false
	}
	s.shutdownWg.Add(1)
	return true
}

// Shutdown stops all VUs and waits up to timeout for them to finish.
func (s *VUScheduler) Shutdown(timeout time.Duration) {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})

	s.StopAllVUs()

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}

	if s.sharedClient != nil {
		s.sharedClient.CloseIdleConnections()
	}
}

// ScaleVUs spawns or stops VUs to reach target. onSpawn is called for each
// new VU and is responsible for running it. It returns the VU count after
// adjustment.
func (s *VUScheduler) ScaleVUs(target int, onSpawn func(*VirtualUser)) int {
	current := s.GetActiveVUCount()

	if target > current {
		for i := current; i < target; i++ {
			vu := s.SpawnVU()
			if onSpawn != nil {
				onSpawn(vu)
			}
		}
	} else if target < current {
		excess := current - target
		stopped := 0

		s.vusMu.RLock()
		for _, vu := range s.vus {
			if stopped >= excess {
				break
			}
			if st := vu.GetState(); st != VUStateStopped && st != VUStateStopping {
				vu.RequestStop()
				stopped++
			}
		}
		s.vusMu.RUnlock()
	}

	return s.GetActiveVUCount()
}
