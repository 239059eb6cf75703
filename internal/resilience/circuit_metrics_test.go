package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-travio/internal/resilience"
)

func TestBreakerMetricsFollowStateMachine(t *testing.T) {
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()

	const target = "payment-provider"
	breaker := resilience.NewBreaker(1, 0.5, 20*time.Millisecond).WithTarget(target)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)), "gauge should show open")

	require.Eventually(t, func() bool {
		return breaker.Allow(ctx)
	}, 100*time.Millisecond, 5*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)), "gauge should show half-open")

	breaker.Report(ctx, true)

	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues(target)), "gauge should show closed")
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues(target)))

	for _, edge := range [][2]string{
		{"closed", "open"},
		{"open", "half_open"},
		{"half_open", "closed"},
	} {
		count := testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues(target, edge[0], edge[1]))
		require.Equal(t, 1.0, count, "transition %s -> %s", edge[0], edge[1])
	}
}
