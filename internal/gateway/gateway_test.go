package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chrissnell/floodfreq/internal/ffa"
	"github.com/chrissnell/floodfreq/internal/gateway"
	"github.com/chrissnell/floodfreq/internal/gateway/gatewaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientInvoke(t *testing.T) {
	var gotPath string
	var gotParams gateway.Params

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotParams)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reject": true, "statistic": 2.5, "p_value": 0.01}`))
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL+"/", zap.NewNop().Sugar())
	params := gateway.Params{Data: []float64{1, 2, 3}, Years: []int{2000, 2001, 2002}, Alpha: 0.05}

	res, err := gateway.Test(context.Background(), client, gateway.ProcMK, params)
	require.NoError(t, err)

	assert.Equal(t, "/eda_mk_test", gotPath)
	assert.Equal(t, params, gotParams)
	assert.True(t, res.Reject)
	assert.Equal(t, 2.5, res.Statistic)
	require.NotNil(t, res.PValue)
	assert.Equal(t, 0.01, *res.PValue)
}

func TestClientBackendErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error with message", http.StatusInternalServerError, `{"error": "optimisation failed", "details": "non-finite likelihood"}`},
		{"bad gateway without body", http.StatusBadGateway, ``},
		{"error object with 200", http.StatusOK, `{"error": "sample too small"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := gateway.NewClient(srv.URL, zap.NewNop().Sugar())
			_, err := gateway.Test(context.Background(), client, gateway.ProcFitMLE, gateway.Params{})

			var pe *ffa.ProcedureError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, string(gateway.ProcFitMLE), pe.Procedure)
		})
	}
}

func TestClientAcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"reject": false, "statistic": 0.4}`))
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, zap.NewNop().Sugar())
	res, err := gateway.Test(context.Background(), client, gateway.ProcMK, gateway.Params{})
	require.NoError(t, err)
	assert.Equal(t, 0.4, res.Statistic)
}

func TestClientRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/plot/sens_trend", r.URL.Path)
		var req gateway.PlotRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, gateway.PlotSensTrend, req.Kind)
		_, _ = w.Write([]byte(`"data:image/png;base64,AAAA"`))
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, zap.NewNop().Sugar())
	img, err := client.Render(context.Background(), gateway.PlotRequest{Kind: gateway.PlotSensTrend})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", img)
}

func TestWithTimeoutSlowProcedure(t *testing.T) {
	fake := gatewaytest.New().On(gateway.ProcWhite, ffa.TestResult{})
	fake.Delay = 200 * time.Millisecond

	g := gateway.WithTimeout(fake, 20*time.Millisecond)
	start := time.Now()
	_, err := gateway.Test(context.Background(), g, gateway.ProcWhite, gateway.Params{})

	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.ErrorIs(t, err, ffa.ErrTimeout)

	var pe *ffa.ProcedureError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, string(gateway.ProcWhite), pe.Procedure)
}

func TestWithTimeoutFastProcedure(t *testing.T) {
	fake := gatewaytest.New().On(gateway.ProcWhite, ffa.TestResult{Reject: true})
	g := gateway.WithTimeout(fake, time.Second)

	res, err := gateway.Test(context.Background(), g, gateway.ProcWhite, gateway.Params{})
	require.NoError(t, err)
	assert.True(t, res.Reject)
}

func TestRendererWithTimeout(t *testing.T) {
	fake := gatewaytest.New()
	fake.Delay = 200 * time.Millisecond

	r := gateway.RendererWithTimeout(fake, 20*time.Millisecond)
	_, err := gateway.Render(context.Background(), r, gateway.PlotRequest{Kind: gateway.PlotRunsTest})
	assert.ErrorIs(t, err, ffa.ErrTimeout)
}

func TestWithTimeoutCallerCancelled(t *testing.T) {
	fake := gatewaytest.New().On(gateway.ProcWhite, ffa.TestResult{})
	fake.Delay = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	g := gateway.WithTimeout(fake, time.Minute)
	_, err := gateway.Test(ctx, g, gateway.ProcWhite, gateway.Params{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ffa.ErrTimeout))
}

func TestRendererWithTimeoutCallerCancelled(t *testing.T) {
	fake := gatewaytest.New()
	fake.Delay = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	r := gateway.RendererWithTimeout(fake, time.Minute)
	_, err := gateway.Render(ctx, r, gateway.PlotRequest{Kind: gateway.PlotRunsTest})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ffa.ErrTimeout))
}

func TestCallDecodeFailure(t *testing.T) {
	fake := gatewaytest.New().On(gateway.ProcFitMLE, "not an object")
	_, err := gateway.Call[ffa.EstimationResult](context.Background(), fake, gateway.ProcFitMLE, gateway.Params{})

	var pe *ffa.ProcedureError
	assert.ErrorAs(t, err, &pe)
}

func TestFakeUnscripted(t *testing.T) {
	fake := gatewaytest.New()
	_, err := fake.Invoke(context.Background(), gateway.ProcKPSS, gateway.Params{})
	assert.Error(t, err)

	fake.Fail(gateway.ProcKPSS, errors.New("boom"))
	_, err = fake.Invoke(context.Background(), gateway.ProcKPSS, gateway.Params{})
	assert.EqualError(t, err, "boom")
}
