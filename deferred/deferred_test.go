package deferred_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/twine/api"
	"github.com/momentics/twine/deferred"
)

// captureUnhandled routes unhandled-failure reports into a slice for the
// duration of one test.
func captureUnhandled(t *testing.T) *[]*deferred.Failure {
	t.Helper()
	var reports []*deferred.Failure
	deferred.SetUnhandledHandler(func(f *deferred.Failure) {
		reports = append(reports, f)
	})
	t.Cleanup(func() {
		deferred.SetUnhandledHandler(func(f *deferred.Failure) {})
	})
	return &reports
}

// A pending deferred runs callbacks in registration order once fired.
func TestCallbacksRunInRegistrationOrder(t *testing.T) {
	d := deferred.New()
	var order []string
	d.AddCallback(func(v any) any {
		order = append(order, "first")
		return v
	})
	d.AddCallback(func(v any) any {
		order = append(order, "second")
		return v
	})
	d.AddCallback(func(v any) any {
		order = append(order, "third")
		return v
	})

	require.NoError(t, d.Callback("go"))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

// Each callback's return value feeds the next callback.
func TestCallbackResultPropagates(t *testing.T) {
	d := deferred.New()
	var got any
	d.AddCallback(func(v any) any { return v.(int) * 2 })
	d.AddCallback(func(v any) any { return v.(int) + 1 })
	d.AddCallback(func(v any) any {
		got = v
		return v
	})

	require.NoError(t, d.Callback(20))
	assert.Equal(t, 41, got)
}

// Firing twice reports api.ErrAlreadyCalled for every combination.
func TestDoubleFireIsAnError(t *testing.T) {
	d := deferred.New()
	require.NoError(t, d.Callback(1))
	require.ErrorIs(t, d.Callback(2), api.ErrAlreadyCalled)
	require.ErrorIs(t, d.Errback(stderrors.New("late")), api.ErrAlreadyCalled)

	d2 := deferred.New()
	d2.AddErrback(func(f *deferred.Failure) any { return nil })
	require.NoError(t, d2.Errback(stderrors.New("boom")))
	require.ErrorIs(t, d2.Errback(stderrors.New("again")), api.ErrAlreadyCalled)
	require.ErrorIs(t, d2.Callback(3), api.ErrAlreadyCalled)
}

// A callback added after the fire runs synchronously with the stored value.
func TestLateCallbackRunsImmediately(t *testing.T) {
	d := deferred.Succeed(21)
	var got int
	d.AddCallback(func(v any) any {
		got = v.(int) * 2
		return got
	})
	assert.Equal(t, 42, got)
}

// Firing with another deferred as the result is a programming error and
// leaves the deferred pending.
func TestFireWithDeferredResultRejected(t *testing.T) {
	d := deferred.New()
	require.ErrorIs(t, d.Callback(deferred.New()), api.ErrNestedDeferred)
	require.False(t, d.Fired())
	require.NoError(t, d.Callback("fine"))
}

// A failure skips success handlers until an errback consumes it.
func TestFailureSkipsCallbacks(t *testing.T) {
	reports := captureUnhandled(t)
	d := deferred.New()
	var order []string
	d.AddCallback(func(v any) any {
		order = append(order, "s1")
		return v
	})
	d.AddErrback(func(f *deferred.Failure) any {
		order = append(order, "f1")
		return f // propagate
	})
	d.AddCallback(func(v any) any {
		order = append(order, "s2")
		return v
	})
	d.AddErrback(func(f *deferred.Failure) any {
		order = append(order, "f2")
		return "recovered"
	})
	d.AddCallback(func(v any) any {
		order = append(order, "s3")
		return v
	})

	require.NoError(t, d.Errback(stderrors.New("initial")))
	assert.Equal(t, []string{"f1", "f2", "s3"}, order)
	assert.Empty(t, *reports)
}

// Handlers registered by one AddCallbacks call are siblings: the errback
// never sees a failure produced by its own pair's callback, while an
// errback at a later position does.
func TestAddCallbacksSiblingsDoNotCatchEachOther(t *testing.T) {
	d := deferred.New()
	siblingCalled := false
	laterCalled := false
	d.AddCallbacks(
		func(v any) any { return stderrors.New("cb blew up") },
		func(f *deferred.Failure) any {
			siblingCalled = true
			return nil
		},
	)
	d.AddErrback(func(f *deferred.Failure) any {
		laterCalled = true
		return nil
	})

	require.NoError(t, d.Callback("ok"))
	assert.False(t, siblingCalled, "sibling errback must not catch its pair's failure")
	assert.True(t, laterCalled, "downstream errback must catch it")
}

// AddCallbacks routes a pre-existing failure to the errback side and a
// success to the callback side.
func TestAddCallbacksSelectsSideByMode(t *testing.T) {
	var viaCb, viaEb bool
	deferred.Succeed("v").AddCallbacks(
		func(v any) any { viaCb = true; return v },
		func(f *deferred.Failure) any { viaEb = true; return nil },
	)
	assert.True(t, viaCb)
	assert.False(t, viaEb)

	viaCb, viaEb = false, false
	deferred.Fail(stderrors.New("x")).AddCallbacks(
		func(v any) any { viaCb = true; return v },
		func(f *deferred.Failure) any { viaEb = true; return nil },
	)
	assert.False(t, viaCb)
	assert.True(t, viaEb)
}

// A callback returning an error value transfers control to the next
// errback, mirroring exception-to-errback translation.
func TestCallbackReturningErrorBecomesFailure(t *testing.T) {
	sentinel := stderrors.New("worker exploded")
	d := deferred.New()
	var caught *deferred.Failure
	d.AddCallback(func(v any) any { return sentinel })
	d.AddErrback(func(f *deferred.Failure) any {
		caught = f
		return nil
	})

	require.NoError(t, d.Callback("start"))
	require.NotNil(t, caught)
	assert.True(t, caught.Check(sentinel))
}

// A panicking handler is contained and surfaces as a failure downstream.
func TestPanicInHandlerBecomesFailure(t *testing.T) {
	d := deferred.New()
	var caught *deferred.Failure
	d.AddCallback(func(v any) any { panic("kaboom") })
	d.AddErrback(func(f *deferred.Failure) any {
		caught = f
		return nil
	})

	require.NoError(t, d.Callback(nil))
	require.NotNil(t, caught)
	assert.Contains(t, caught.Error(), "kaboom")
}

// An errback returning a plain value resumes the success path.
func TestErrbackRecoversToSuccessPath(t *testing.T) {
	d := deferred.Fail(stderrors.New("transient"))
	var got any
	d.AddErrback(func(f *deferred.Failure) any { return "recovered" })
	d.AddCallback(func(v any) any {
		got = v
		return v
	})
	assert.Equal(t, "recovered", got)
}

// Firing via Callback with an error value starts the chain on the
// failure path.
func TestCallbackWithErrorValueStartsFailureMode(t *testing.T) {
	d := deferred.New()
	var caught *deferred.Failure
	d.AddErrback(func(f *deferred.Failure) any {
		caught = f
		return nil
	})
	require.NoError(t, d.Callback(stderrors.New("oops")))
	require.NotNil(t, caught)
}

// Errback with a nil error still produces a generic failure.
func TestErrbackNilProducesGenericFailure(t *testing.T) {
	d := deferred.New()
	var caught *deferred.Failure
	d.AddErrback(func(f *deferred.Failure) any {
		caught = f
		return nil
	})
	require.NoError(t, d.Errback(nil))
	require.NotNil(t, caught)
	assert.NotEmpty(t, caught.Error())
}

// AddBoth sees the value on success and the failure on the error path.
func TestAddBothSeesBothModes(t *testing.T) {
	var seen []any
	deferred.Succeed("yes").AddBoth(func(v any) any {
		seen = append(seen, v)
		return v
	})
	deferred.Fail(stderrors.New("no")).AddBoth(func(v any) any {
		seen = append(seen, v)
		return nil
	})

	require.Len(t, seen, 2)
	assert.Equal(t, "yes", seen[0])
	_, isFailure := seen[1].(*deferred.Failure)
	assert.True(t, isFailure, "failure path hands the *Failure to AddBoth")
}

// A handler returning a pending deferred pauses the chain until the
// inner one fires; the inner result resumes the outer chain.
func TestChainedDeferredPausesAndResumes(t *testing.T) {
	outer := deferred.New()
	inner := deferred.New()
	var order []string

	outer.AddCallback(func(v any) any {
		order = append(order, "enter:"+v.(string))
		return inner
	})
	outer.AddCallback(func(v any) any {
		order = append(order, "resume:"+v.(string))
		return v
	})

	require.NoError(t, outer.Callback("go"))
	assert.Equal(t, []string{"enter:go"}, order, "chain must pause on the pending inner deferred")

	require.NoError(t, inner.Callback("inner-value"))
	assert.Equal(t, []string{"enter:go", "resume:inner-value"}, order)
}

// A handler returning an already-fired deferred continues synchronously.
func TestChainedFiredDeferredContinuesSynchronously(t *testing.T) {
	outer := deferred.New()
	var got any
	outer.AddCallback(func(v any) any { return deferred.Succeed("sync") })
	outer.AddCallback(func(v any) any {
		got = v
		return v
	})
	require.NoError(t, outer.Callback(nil))
	assert.Equal(t, "sync", got)
}

// A failure coming out of a chained deferred is caught by the outer
// chain's errback and is not reported as unhandled on the inner one.
func TestChainedDeferredFailurePropagatesOnce(t *testing.T) {
	reports := captureUnhandled(t)
	outer := deferred.New()
	inner := deferred.New()
	var caught *deferred.Failure

	outer.AddCallback(func(v any) any { return inner })
	outer.AddErrback(func(f *deferred.Failure) any {
		caught = f
		return nil
	})

	require.NoError(t, outer.Callback("start"))
	require.NoError(t, inner.Errback(stderrors.New("inner broke")))

	require.NotNil(t, caught)
	assert.Contains(t, caught.Error(), "inner broke")
	assert.Empty(t, *reports, "handled failure must not be reported as unhandled")
}

// Handlers added while an outer walk is in progress still run, in order.
func TestHandlerAddedDuringWalkRuns(t *testing.T) {
	d := deferred.New()
	var order []string
	d.AddCallback(func(v any) any {
		order = append(order, "first")
		d.AddCallback(func(v any) any {
			order = append(order, "appended")
			return v
		})
		return v
	})
	require.NoError(t, d.Callback(nil))
	assert.Equal(t, []string{"first", "appended"}, order)
}

// A failure that drains off the end of the chain is reported exactly
// once, and a later errback still receives the stored failure.
func TestUnhandledFailureReportedOnce(t *testing.T) {
	reports := captureUnhandled(t)
	sentinel := stderrors.New("nobody home")

	d := deferred.New()
	d.AddCallback(func(v any) any { return v }) // pass-through only
	require.NoError(t, d.Errback(sentinel))

	require.Len(t, *reports, 1)
	assert.True(t, (*reports)[0].Check(sentinel))

	var caught *deferred.Failure
	d.AddErrback(func(f *deferred.Failure) any {
		caught = f
		return nil
	})
	require.NotNil(t, caught, "stored failure must reach a late errback")
	assert.Len(t, *reports, 1, "report fires at most once per deferred")
}

// A consumed failure is never reported as unhandled.
func TestConsumedFailureNotReported(t *testing.T) {
	reports := captureUnhandled(t)
	d := deferred.New()
	d.AddErrback(func(f *deferred.Failure) any { return nil })
	require.NoError(t, d.Errback(stderrors.New("handled")))
	assert.Empty(t, *reports)
}

// BenchmarkChainWalk measures firing through a sixteen-step callback
// chain.
func BenchmarkChainWalk(b *testing.B) {
	passthrough := func(result any) any { return result }
	for i := 0; i < b.N; i++ {
		d := deferred.New()
		for j := 0; j < 16; j++ {
			d.AddCallback(passthrough)
		}
		_ = d.Callback(i)
	}
}
