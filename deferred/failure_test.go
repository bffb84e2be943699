package deferred_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/twine/deferred"
)

var errSentinel = stderrors.New("sentinel condition")

// NewFailure wraps plain errors and is idempotent on failures.
func TestNewFailureWrapping(t *testing.T) {
	f := deferred.NewFailure(errSentinel)
	require.NotNil(t, f)
	assert.Equal(t, errSentinel.Error(), f.Error())
	assert.Same(t, f, deferred.NewFailure(f))
}

// A nil error still yields a usable failure.
func TestNewFailureNil(t *testing.T) {
	f := deferred.NewFailure(nil)
	require.NotNil(t, f)
	assert.NotEmpty(t, f.Error())
}

// Check matches through the stack annotation with errors.Is semantics.
func TestFailureCheck(t *testing.T) {
	f := deferred.NewFailure(fmt.Errorf("outer context: %w", errSentinel))
	assert.True(t, f.Check(errSentinel))
	assert.False(t, f.Check(stderrors.New("unrelated")))
	assert.True(t, f.Check(stderrors.New("unrelated"), errSentinel))
}

// errors.Is sees through the Failure wrapper itself.
func TestFailureUnwrap(t *testing.T) {
	f := deferred.NewFailure(errSentinel)
	assert.True(t, stderrors.Is(f, errSentinel))
	assert.Equal(t, errSentinel, f.Cause())
}

// %+v output carries the stack captured at failure creation.
func TestFailureStackFormatting(t *testing.T) {
	f := deferred.NewFailure(errSentinel)
	long := fmt.Sprintf("%+v", f)
	assert.Contains(t, long, "sentinel condition")
	assert.Contains(t, long, "failure_test.go", "stack should point at the creation site")

	short := fmt.Sprintf("%v", f)
	assert.Equal(t, "sentinel condition", short)
	assert.Equal(t, `"sentinel condition"`, fmt.Sprintf("%q", f))
}
