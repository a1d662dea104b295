package judge

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/model"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(config.JudgeConfig{
		URL:              url,
		APIKey:           "secret",
		Timeout:          2 * time.Second,
		FailureThreshold: 2,
		OpenSeconds:      60,
	})
}

func sampleRequest() Request {
	return Request{
		Code:     "print(1)",
		Language: model.LangPython,
		TestCases: []model.TestCase{
			{Input: "1", ExpectedOutput: "1"},
			{Input: "2", ExpectedOutput: "2", IsHidden: true},
		},
	}
}

func TestExecuteAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.TestCases, 2)

		json.NewEncoder(w).Encode(Result{
			Status: model.StatusAccepted,
			TestResults: []model.TestResult{
				{Passed: true, ExecutionTime: 12},
				{Passed: true, ExecutionTime: 15},
			},
			ExecutionTime: 27,
			Memory:        2048,
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Execute(context.Background(), sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, res.Status)
	assert.Equal(t, 2, res.PassedCount, "passed count derived from test results")
	assert.Equal(t, int64(2048), res.Memory)
}

func TestExecuteAcceptedWithFailingCaseIsWrongAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{
			Status:      model.StatusAccepted,
			TestResults: []model.TestResult{{Passed: true}, {Passed: false}},
			PassedCount: 1,
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Execute(context.Background(), sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, model.StatusWrongAnswer, res.Status)
}

func TestExecuteRejectedDoesNotTripBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unsupported language", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 4; i++ {
		_, err := client.Execute(context.Background(), sampleRequest())
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestExecuteServerErrorOpensBreaker(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 4; i++ {
		_, err := client.Execute(context.Background(), sampleRequest())
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	// 连续失败 2 次后熔断，后续请求不再到达服务端
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExecuteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Execute(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExecuteUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Execute(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrUnavailable)
}
