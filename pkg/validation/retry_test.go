package validation

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oneconcern/globalrefdb/pkg/model"
	refstatus "github.com/oneconcern/globalrefdb/pkg/refdb/status"
	"github.com/oneconcern/globalrefdb/pkg/validation/status"
)

func TestRetryHook(t *testing.T) {
	lockErr := &status.LockError{Project: "p", RefName: mainBranch, Scope: string(ScopeGlobal), Err: errors.New("timeout")}

	for _, toPin := range []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "lock error", err: lockErr, expected: true},
		{name: "backend lock error", err: refstatus.ErrLock.Wrap(errors.New("held")), expected: true},
		{name: "split brain", err: &status.SplitBrainError{Project: "p", RefName: mainBranch}},
		{name: "out of sync", err: &status.OutOfSyncError{Project: "p", Local: model.NullRef(mainBranch)}},
		{name: "other", err: errors.New("other")},
		{name: "nil"},
	} {
		fixture := toPin
		t.Run(fixture.name, func(t *testing.T) {
			assert.Equal(t, fixture.expected, ShouldRetry(fixture.err))
			st, ok := StatusFor(fixture.err)
			assert.Equal(t, fixture.expected, ok)
			if fixture.expected {
				assert.Equal(t, http.StatusServiceUnavailable, st.Code)
				assert.Equal(t, "Lock failure", st.Message)
			}
		})
	}

	msgs := UserMessages(lockErr, "abc", " ", "def")
	assert.Equal(t, []string{lockErr.Error(), "Trace ID: abc", "Trace ID: def"}, msgs)
	assert.Empty(t, UserMessages(errors.New("other"), "abc"))
}
