package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { MustRegister(reg) })

	// a second registration of the same collectors must be refused
	assert.Panics(t, func() { MustRegister(reg) })
}

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("error"))
	ObserveRun(time.Now(), errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues("error")))

	before = testutil.ToFloat64(RunsTotal.WithLabelValues("success"))
	ObserveRun(time.Now(), nil)
	assert.Equal(t, before+1, testutil.ToFloat64(RunsTotal.WithLabelValues("success")))
}

func TestObserveStage(t *testing.T) {
	before := testutil.ToFloat64(ListingsTotal.WithLabelValues("eligible"))
	ObserveStage("eligible", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(ListingsTotal.WithLabelValues("eligible")))

	before = testutil.ToFloat64(ListingsTotal.WithLabelValues("unknown"))
	ObserveStage("", 1)
	assert.Equal(t, before+1, testutil.ToFloat64(ListingsTotal.WithLabelValues("unknown")))
}

func TestIncSourceError(t *testing.T) {
	before := testutil.ToFloat64(SourceErrors.WithLabelValues("remoteok"))
	IncSourceError("remoteok")
	assert.Equal(t, before+1, testutil.ToFloat64(SourceErrors.WithLabelValues("remoteok")))
}

func TestObserveAIRequest(t *testing.T) {
	before := testutil.ToFloat64(AIRequests.WithLabelValues("gemini", "error"))
	ObserveAIRequest("gemini", time.Now(), errors.New("timeout"))
	assert.Equal(t, before+1, testutil.ToFloat64(AIRequests.WithLabelValues("gemini", "error")))
}

func TestObserveLedger(t *testing.T) {
	ObserveLedger("file", "record", time.Now(), nil)
	ObserveLedger("", "", time.Now(), errors.New("disk full"))

	assert.GreaterOrEqual(t, testutil.CollectAndCount(LedgerOperationDuration), 2)
}
