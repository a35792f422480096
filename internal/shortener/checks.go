package shortener

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultRedirectThreshold is the slowest redirect that still passes.
const DefaultRedirectThreshold = 50 * time.Millisecond

// CheckCreate classifies a create response. On success it returns the new
// short id and an empty failure.
func CheckCreate(resp *Response) (id, failure string) {
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Sprintf("Expected 201, got %d", resp.StatusCode)
	}
	if msg := invalidJSON(resp.Body); msg != "" {
		return "", msg
	}

	id, ok := shortURLID(resp.Body)
	if !ok {
		return "", "No shortUrlId in response"
	}
	return id, ""
}

// shortURLID returns data.shortUrlId when it is a non-empty JSON string.
func shortURLID(body []byte) (string, bool) {
	r := gjson.GetBytes(body, "data.shortUrlId")
	if r.Type != gjson.String || r.Str == "" {
		return "", false
	}
	return r.Str, true
}

// CheckRedirect classifies a redirect response against the latency
// threshold.
func CheckRedirect(resp *Response, threshold time.Duration) string {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound:
		if resp.Elapsed > threshold {
			return fmt.Sprintf("Redirect too slow: %.3fs", resp.Elapsed.Seconds())
		}
		return ""
	case http.StatusNotFound:
		return "URL not found"
	default:
		return fmt.Sprintf("Expected 301/302, got %d", resp.StatusCode)
	}
}

// CheckStats classifies a stats response. The click count may be any JSON
// value, including null; only its presence is checked.
func CheckStats(resp *Response) string {
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Expected 200, got %d", resp.StatusCode)
	}
	if msg := invalidJSON(resp.Body); msg != "" {
		return msg
	}
	if !gjson.GetBytes(resp.Body, "data.clickCount").Exists() {
		return "Missing clickCount in response data"
	}
	return ""
}

// invalidJSON returns the failure message for a body that does not parse.
func invalidJSON(body []byte) string {
	if gjson.ValidBytes(body) {
		return ""
	}
	// gjson only reports validity; encoding/json supplies the parse error text.
	var v any
	err := json.Unmarshal(body, &v)
	if err == nil {
		return ""
	}
	return "Invalid JSON response: " + err.Error()
}

// uncheckedFailure applies the default rule to requests made without a
// check: any transport error or a status of 400 and above fails.
func uncheckedFailure(resp *Response, err error) string {
	if err != nil {
		return err.Error()
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return ""
}
