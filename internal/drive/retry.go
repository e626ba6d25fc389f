package drive

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"
)

// quotaBody is the part of a Google error body that can carry a retry hint.
type quotaBody struct {
	Error struct {
		Details []struct {
			RetryDelay string            `json:"retryDelay"`
			Metadata   map[string]string `json:"metadata"`
		} `json:"details"`
	} `json:"error"`
}

// retryAfter extracts the server's back-off hint from a rate-limit response,
// first from Retry-After and then from the body's retryDelay. Zero means no
// hint. The service does not retry; the hint is passed to the caller.
func retryAfter(gerr *googleapi.Error, now time.Time) time.Duration {
	if v := gerr.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil && t.After(now) {
			return t.Sub(now)
		}
	}
	if gerr.Body == "" {
		return 0
	}
	var body quotaBody
	if err := json.Unmarshal([]byte(gerr.Body), &body); err != nil {
		return 0
	}
	for _, d := range body.Error.Details {
		delay := d.RetryDelay
		if delay == "" {
			delay = d.Metadata["retryDelay"]
		}
		if delay == "" {
			continue
		}
		if dur, err := time.ParseDuration(delay); err == nil {
			return dur
		}
	}
	return 0
}
