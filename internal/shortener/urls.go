// Package shortener drives a URL-shortening service: an API client, the
// response checks for each endpoint and the simulated user profiles built
// on top of them.
package shortener

import (
	"fmt"
	"math/rand"
	"strings"
)

var longURLDomains = []string{"example.com", "test.org", "demo.net", "sample.co"}

const (
	segmentCount  = 3
	segmentLength = 10
	letters       = "abcdefghijklmnopqrstuvwxyz"
)

// GenerateLongURL returns a random URL of the form
// https://{domain}/{s1}/{s2}/{s3}?param={n} with 10-letter lowercase
// segments and n in [1000, 9999].
func GenerateLongURL(rng *rand.Rand) string {
	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(longURLDomains[rng.Intn(len(longURLDomains))])

	for i := 0; i < segmentCount; i++ {
		b.WriteByte('/')
		for j := 0; j < segmentLength; j++ {
			b.WriteByte(letters[rng.Intn(len(letters))])
		}
	}

	fmt.Fprintf(&b, "?param=%d", 1000+rng.Intn(9000))
	return b.String()
}

// PopularURL is the i-th long URL a cache-warmup user creates.
func PopularURL(i int) string {
	return fmt.Sprintf("https://popular-site.com/page-%d", i)
}
