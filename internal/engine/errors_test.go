package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError_Error(t *testing.T) {
	cause := errors.New("disk I/O error")

	assert.Equal(t,
		"APPLY_FAILED: apply rolled back, target unchanged (stage=apply): disk I/O error",
		NewApplyError(cause).Error())
	assert.Equal(t,
		"SOURCE_UNAVAILABLE: source store unavailable (stage=open): disk I/O error",
		NewSourceError("open", cause).Error())
	assert.Equal(t,
		"UNRESOLVED_THRESHOLD: 1 of 4 events unresolved (25.0% > 10%) (stage=resolve)",
		NewThresholdError(1, 4, 10).Error())
	assert.Equal(t, "X: y", (&StageError{Code: "X", Message: "y"}).Error())
}

func TestStageError_Predicates(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("merge: %w", NewTargetError("open", cause))

	assert.True(t, IsTargetUnavailable(wrapped))
	assert.False(t, IsSourceUnavailable(wrapped))
	assert.False(t, IsApplyFailed(wrapped))
	assert.False(t, IsUnresolvedThreshold(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	assert.True(t, IsSourceUnavailable(NewSourceError("extract", cause)))
	assert.True(t, IsApplyFailed(NewApplyError(cause)))
	assert.True(t, IsUnresolvedThreshold(NewThresholdError(1, 1, 0)))
	assert.False(t, IsApplyFailed(cause))
	assert.False(t, IsApplyFailed(nil))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, percent(3, 0))
	assert.Equal(t, 50.0, percent(1, 2))
	r := &Report{Events: 8, Unresolved: 1, Unsupported: 1}
	assert.Equal(t, 25.0, r.UnresolvedPercent())
}
