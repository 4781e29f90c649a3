package validation

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/oneconcern/globalrefdb/pkg/errors"
	refstatus "github.com/oneconcern/globalrefdb/pkg/refdb/status"
	"github.com/oneconcern/globalrefdb/pkg/validation/status"
)

// Status is the response a hosting layer should send back for an error
type Status struct {
	Code    int
	Message string
}

func isLockError(err error) bool {
	return err != nil && (errors.Is(err, status.ErrLock) || errors.Is(err, refstatus.ErrLock))
}

// ShouldRetry tells if a failed request may be retried. Only lock failures are retryable.
func ShouldRetry(err error) bool {
	return isLockError(err)
}

// StatusFor returns the status of a response to a failed request, if the error is known
func StatusFor(err error) (Status, bool) {
	if !isLockError(err) {
		return Status{}, false
	}
	return Status{Code: http.StatusServiceUnavailable, Message: "Lock failure"}, true
}

// UserMessages returns the messages to report to users for a failed request
func UserMessages(err error, traceIDs ...string) []string {
	if !isLockError(err) {
		return nil
	}
	msgs := []string{err.Error()}
	for _, id := range traceIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		msgs = append(msgs, fmt.Sprintf("Trace ID: %s", id))
	}
	return msgs
}
