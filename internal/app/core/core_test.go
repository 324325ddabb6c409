package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	preorderworkflows "github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/workflows"
	"github.com/Apurer/preorder-gateway/internal/platform/resilience"
)

func TestActivityCompensation_MakesSingleRemoteAttempt(t *testing.T) {
	var cancels atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/balance/cancel" {
			cancels.Add(1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"message":"down"}`))
	}))
	t.Cleanup(srv.Close)

	components, err := Build(context.Background(), Config{BalanceServiceURL: srv.URL}, nil)
	require.NoError(t, err)
	t.Cleanup(components.Close)

	res := components.ActivityCompensation().Cancel(context.Background(), "order-1")
	require.False(t, res.IsSuccessful)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, int32(1), cancels.Load())
	assert.Equal(t, 5, components.Policy.MutationRetries, "the shared pipeline keeps its retries")
}

func TestInlineCompensationTimeout_CoversPipelineBudget(t *testing.T) {
	components := &Components{Policy: resilience.DefaultConfig()}

	budget := components.Policy.CallBudget(resilience.OperationPreOrder)
	assert.Greater(t, components.InlineCompensationTimeout(), budget)
	assert.GreaterOrEqual(t, preorderworkflows.DefaultCompensationTimeout, components.InlineCompensationTimeout())
	assert.Equal(t, 132*time.Second, components.InlineCompensationTimeout())
}
