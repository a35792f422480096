package shortener

import (
	"math/rand"
	"regexp"
	"strconv"
	"testing"
)

var longURLPattern = regexp.MustCompile(`^https://(example\.com|test\.org|demo\.net|sample\.co)/[a-z]{10}/[a-z]{10}/[a-z]{10}\?param=(\d+)$`)

func TestGenerateLongURL(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	domains := make(map[string]bool)

	for i := 0; i < 2000; i++ {
		u := GenerateLongURL(rng)
		m := longURLPattern.FindStringSubmatch(u)
		if m == nil {
			t.Fatalf("GenerateLongURL() = %q, does not match pattern", u)
		}
		domains[m[1]] = true

		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1000 || n > 9999 {
			t.Errorf("param = %q, want integer in [1000, 9999]", m[2])
		}
	}

	if len(domains) != 4 {
		t.Errorf("saw domains %v, want all 4", domains)
	}
}

func TestGenerateLongURL_Deterministic(t *testing.T) {
	a := GenerateLongURL(rand.New(rand.NewSource(99)))
	b := GenerateLongURL(rand.New(rand.NewSource(99)))
	if a != b {
		t.Errorf("same seed gave %q and %q", a, b)
	}
}

func TestPopularURL(t *testing.T) {
	if got := PopularURL(3); got != "https://popular-site.com/page-3" {
		t.Errorf("PopularURL(3) = %q", got)
	}
}
