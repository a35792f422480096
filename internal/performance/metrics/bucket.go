package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeBucketStore keeps time buckets in a fixed-size ring buffer.
//
// Request recording is lock-free; only bucket rotation takes the mutex.
// Once the buffer is full the oldest bucket is overwritten.
type TimeBucketStore struct {
	buckets    []*TimeBucket
	head       int
	count      int
	maxBuckets int
	mu         sync.RWMutex

	lastBucketTime time.Time

	currentRequests atomic.Int64
	currentFailures atomic.Int64
}

// NewTimeBucketStore creates a store holding at most maxBuckets buckets.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600
	}

	return &TimeBucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// RecordRequest adds one request to the open interval.
func (s *TimeBucketStore) RecordRequest(success bool) {
	s.currentRequests.Add(1)
	if !success {
		s.currentFailures.Add(1)
	}
}

// CreateBucket closes the open interval into a new bucket.
func (s *TimeBucketStore) CreateBucket(
	totalRequests, totalSuccesses, totalFailures, totalBytes int64,
	latencies LatencyPercentiles,
	activeVUs int,
	phase Phase,
) *TimeBucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	intervalRequests := s.currentRequests.Swap(0)
	intervalFailures := s.currentFailures.Swap(0)

	seconds := now.Sub(s.lastBucketTime).Seconds()
	if seconds <= 0 {
		seconds = 1.0
	}

	errorRate := 0.0
	if intervalRequests > 0 {
		errorRate = float64(intervalFailures) / float64(intervalRequests)
	}

	bucket := &TimeBucket{
		Timestamp:         now,
		TotalRequests:     totalRequests,
		TotalSuccesses:    totalSuccesses,
		TotalFailures:     totalFailures,
		TotalBytes:        totalBytes,
		IntervalRequests:  intervalRequests,
		IntervalRPS:       float64(intervalRequests) / seconds,
		IntervalErrorRate: errorRate,
		LatencyMin:        latencies.Min,
		LatencyMax:        latencies.Max,
		LatencyP50:        latencies.P50,
		LatencyP90:        latencies.P90,
		LatencyP95:        latencies.P95,
		LatencyP99:        latencies.P99,
		ActiveVUs:         activeVUs,
		Phase:             phase,
	}

	s.buckets[s.head] = bucket
	s.head = (s.head + 1) % s.maxBuckets
	if s.count < s.maxBuckets {
		s.count++
	}
	s.lastBucketTime = now

	return bucket
}

// GetBuckets returns the buckets in chronological order.
func (s *TimeBucketStore) GetBuckets() []*TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, s.count)
	start := 0
	if s.count == s.maxBuckets {
		start = s.head
	}
	for i := 0; i < s.count; i++ {
		result[i] = s.buckets[(start+i)%s.maxBuckets]
	}

	return result
}

// GetLatestBucket returns the most recent bucket, or nil.
func (s *TimeBucketStore) GetLatestBucket() *TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}
	return s.buckets[(s.head-1+s.maxBuckets)%s.maxBuckets]
}

// Count returns the number of stored buckets.
func (s *TimeBucketStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Reset drops every bucket and the open interval.
func (s *TimeBucketStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets = make([]*TimeBucket, s.maxBuckets)
	s.head = 0
	s.count = 0
	s.lastBucketTime = time.Now()
	s.currentRequests.Store(0)
	s.currentFailures.Store(0)
}

// CalculateSteadyStateRPS averages the interval rate over steady-phase
// buckets. It returns the number of buckets used; zero means no steady data.
func (s *TimeBucketStore) CalculateSteadyStateRPS() (float64, int) {
	var sum float64
	n := 0
	for _, b := range s.GetBuckets() {
		if b.Phase == PhaseSteady {
			sum += b.IntervalRPS
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
