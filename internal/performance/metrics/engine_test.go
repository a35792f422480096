package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNewEngine(t *testing.T) {
	engine := NewEngine()
	if engine == nil {
		t.Fatal("NewEngine() returned nil")
	}
	defer engine.Stop()

	snapshot := engine.GetSnapshot()
	if snapshot.TotalRequests != 0 {
		t.Errorf("Initial TotalRequests = %d, want 0", snapshot.TotalRequests)
	}
	if snapshot.CurrentPhase != PhaseInit {
		t.Errorf("Initial phase = %v, want %v", snapshot.CurrentPhase, PhaseInit)
	}
	if snapshot.CheckRate != 0 {
		t.Errorf("Initial CheckRate = %v, want 0", snapshot.CheckRate)
	}
}

func TestEngine_RecordLatency(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordLatency(10*time.Millisecond, "GET /[shortUrlId]", true, 1000)
	engine.RecordLatency(20*time.Millisecond, "GET /[shortUrlId]", true, 2000)
	engine.RecordLatency(30*time.Millisecond, "POST /api/v1/urls/", false, 500)

	snapshot := engine.GetSnapshot()

	if snapshot.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", snapshot.TotalRequests)
	}
	if snapshot.SuccessRequests != 2 {
		t.Errorf("SuccessRequests = %d, want 2", snapshot.SuccessRequests)
	}
	if snapshot.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", snapshot.FailedRequests)
	}
	if snapshot.TotalBytes != 3500 {
		t.Errorf("TotalBytes = %d, want 3500", snapshot.TotalBytes)
	}

	stats := engine.GetRequestStats()
	if got := stats["GET /[shortUrlId]"].Count; got != 2 {
		t.Errorf("redirect Count = %d, want 2", got)
	}
	if got := stats["POST /api/v1/urls/"].Failed; got != 1 {
		t.Errorf("create Failed = %d, want 1", got)
	}
}

func TestEngine_LatencyPercentiles(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	for i := 1; i <= 10; i++ {
		engine.RecordLatency(time.Duration(i*10)*time.Millisecond, "", true, 100)
	}

	p := engine.GetLatencyPercentiles()

	if p.P50 < 40*time.Millisecond || p.P50 > 60*time.Millisecond {
		t.Errorf("P50 = %v, want ~50ms", p.P50)
	}
	if p.P99 < 90*time.Millisecond || p.P99 > 110*time.Millisecond {
		t.Errorf("P99 = %v, want ~100ms", p.P99)
	}
	if p.Min < 9*time.Millisecond || p.Min > 11*time.Millisecond {
		t.Errorf("Min = %v, want ~10ms", p.Min)
	}
}

func TestEngine_Failures(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordFailure("GET /[shortUrlId]", "URL not found")
	engine.RecordFailure("GET /[shortUrlId]", "URL not found")
	engine.RecordFailure("POST /api/v1/urls/", "Expected 201, got 500")

	failures := engine.GetFailures()
	if len(failures) != 2 {
		t.Fatalf("len(failures) = %d, want 2", len(failures))
	}
	if failures[0].Message != "URL not found" || failures[0].Count != 2 {
		t.Errorf("failures[0] = %+v, want URL not found x2", failures[0])
	}
	if failures[1].Name != "POST /api/v1/urls/" || failures[1].Count != 1 {
		t.Errorf("failures[1] = %+v", failures[1])
	}
}

func TestEngine_Checks(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.RecordCheck(true)
	engine.RecordCheck(true)
	engine.RecordCheck(true)
	engine.RecordCheck(false)

	s := engine.GetSnapshot()
	if s.ChecksPassed != 3 || s.ChecksFailed != 1 {
		t.Errorf("checks = %d/%d, want 3/1", s.ChecksPassed, s.ChecksFailed)
	}
	if s.CheckRate != 0.75 {
		t.Errorf("CheckRate = %v, want 0.75", s.CheckRate)
	}
}

func TestEngine_Phases(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.SetPhase(PhaseRampUp)
	engine.SetPhase(PhaseRampUp)
	engine.SetPhase(PhaseSteady)

	if engine.GetPhase() != PhaseSteady {
		t.Errorf("GetPhase() = %v, want %v", engine.GetPhase(), PhaseSteady)
	}
	history := engine.GetPhaseHistory()
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(history))
	}
	if history[0].Phase != PhaseRampUp || history[1].Phase != PhaseSteady {
		t.Errorf("history = %+v", history)
	}
}

func TestEngine_ActiveVUs(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	engine.AddActiveVUs(5)
	engine.AddActiveVUs(3)
	engine.AddActiveVUs(-2)

	if got := engine.GetActiveVUs(); got != 6 {
		t.Errorf("GetActiveVUs() = %d, want 6", got)
	}
}

func TestEngine_TimeSeries(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.BucketInterval = 20 * time.Millisecond
	engine := NewEngineWithConfig(cfg)

	engine.RecordLatency(5*time.Millisecond, "", true, 10)
	time.Sleep(70 * time.Millisecond)
	engine.Stop()
	engine.Stop()

	buckets := engine.GetTimeSeries()
	if len(buckets) < 2 {
		t.Fatalf("len(buckets) = %d, want >= 2", len(buckets))
	}
	last := buckets[len(buckets)-1]
	if last.TotalRequests != 1 {
		t.Errorf("last.TotalRequests = %d, want 1", last.TotalRequests)
	}
	for i := 1; i < len(buckets); i++ {
		if buckets[i].Timestamp.Before(buckets[i-1].Timestamp) {
			t.Errorf("bucket %d out of order", i)
		}
	}
}

func TestEngine_ConcurrentAccess(t *testing.T) {
	engine := NewEngine()
	defer engine.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				engine.RecordLatency(time.Millisecond, "GET /[shortUrlId]", i%10 != 0, 1)
				if i%10 == 0 {
					engine.RecordFailure("GET /[shortUrlId]", "URL not found")
				}
				_ = engine.GetSnapshot()
			}
		}()
	}
	wg.Wait()

	s := engine.GetSnapshot()
	if s.TotalRequests != 1600 {
		t.Errorf("TotalRequests = %d, want 1600", s.TotalRequests)
	}
	if f := engine.GetFailures(); len(f) != 1 || f[0].Count != 160 {
		t.Errorf("failures = %+v, want one entry x160", f)
	}
}

func BenchmarkEngine_RecordLatency_Parallel(b *testing.B) {
	engine := NewEngine()
	defer engine.Stop()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			engine.RecordLatency(3*time.Millisecond, "GET /[shortUrlId]", true, 128)
		}
	})
}
