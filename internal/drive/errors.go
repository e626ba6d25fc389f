package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/pysugar/photo-nexus/internal/apperror"
)

// classify maps a raw provider error onto the application taxonomy.
// 401 and non-quota 403 responses mean the token is no longer accepted.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return apperror.StorageAuth(op, err)
		case gerr.Code == http.StatusForbidden && !isRateLimited(gerr):
			return apperror.StorageAuth(op, err)
		}
		serr := apperror.Storage(op, err).WithDetail("status", gerr.Code)
		if gerr.Code == http.StatusTooManyRequests || isRateLimited(gerr) {
			if d := retryAfter(gerr, time.Now()); d > 0 {
				serr.WithDetail("retry_after_seconds", int(d.Round(time.Second)/time.Second))
			}
		}
		return serr
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return apperror.StorageAuth(op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Storage(op, fmt.Errorf("timed out: %w", err))
	}
	return apperror.Storage(op, err)
}

func isRateLimited(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if strings.Contains(strings.ToLower(item.Reason), "ratelimit") {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
