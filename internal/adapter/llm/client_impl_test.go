package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/user/strain-pipeline/internal/entity"
	"go.uber.org/zap"
)

func TestValidateMatchesVerdictsByStrainID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "m-1", req.Model)
		require.Len(t, req.Rows, 3)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(batchResponse{Verdicts: []entity.Verdict{
			{StrainID: "b", Breeder: "Ethos Genetics", Confidence: 0.9, Reasoning: "brand in JSON-LD"},
			{StrainID: "a", Breeder: "Unknown", Confidence: 0.2},
			{StrainID: "c", Breeder: "X", Confidence: 7},
		}})
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, APIKey: "secret", Model: "m-1"}, zap.NewNop())
	got, err := c.Validate(context.Background(), []entity.ValidationRequest{
		{StrainID: "a"}, {StrainID: "b"}, {StrainID: "c"},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "Unknown", got[0].Breeder)
	require.Equal(t, "Ethos Genetics", got[1].Breeder)
	require.Equal(t, 0.9, got[1].Confidence)
	require.NotEmpty(t, got[2].Err)
}

func TestValidateRetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"verdicts":[{"strain_id":"a","breeder":"Mephisto Genetics","confidence":0.95,"reasoning":"self-branded"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, Retries: 2}, zap.NewNop())
	c.http.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)

	got, err := c.Validate(context.Background(), []entity.ValidationRequest{{StrainID: "a"}})
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
	require.Equal(t, "Mephisto Genetics", got[0].Breeder)
	require.Empty(t, got[0].Err)
}

func TestValidateReportsBatchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL}, zap.NewNop())
	_, err := c.Validate(context.Background(), []entity.ValidationRequest{{StrainID: "a"}})
	require.Error(t, err)
}
