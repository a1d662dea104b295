package judge

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/model"
	"algo_learn_backend/pkg/logger"
	"algo_learn_backend/pkg/monitoring"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable 判题服务不可达、超时、5xx 或熔断中
	ErrUnavailable = errors.New("judge unavailable")
	// ErrRejected 判题服务拒绝了请求（4xx），重试没有意义
	ErrRejected = errors.New("judge rejected request")
)

type Request struct {
	Code      string           `json:"code"`
	Language  model.Language   `json:"language"`
	TestCases []model.TestCase `json:"testCases"`
}

type Result struct {
	Status        model.SubmissionStatus `json:"status"`
	TestResults   []model.TestResult     `json:"testResults"`
	PassedCount   int                    `json:"passedCount"`
	ExecutionTime float64                `json:"executionTime"`
	Memory        int64                  `json:"memory"`
}

// Executor 外部代码执行服务，同步调用
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

type callResult struct {
	result *Result
	reject error
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker circuitbreaker.CircuitBreaker[*callResult]
}

func NewClient(cfg config.JudgeConfig) *Client {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	open := time.Duration(cfg.OpenSeconds) * time.Second
	if open <= 0 {
		open = 30 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New[*callResult](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     open,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= threshold
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Log.Warn("judge circuit breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	out, err := c.breaker.Execute(ctx, func(ctx context.Context) (*callResult, error) {
		return c.do(ctx, req)
	})
	monitoring.JudgeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Log.Warn("judge call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if out.reject != nil {
		return nil, out.reject
	}
	return normalize(out.result, len(req.TestCases))
}

func (c *Client) do(ctx context.Context, req Request) (*callResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return &callResult{reject: fmt.Errorf("%w: %v", ErrRejected, err)}, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("judge responded %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		// 4xx 不计入熔断失败
		return &callResult{reject: fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(payload)))}, nil
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode judge response: %w", err)
	}
	return &callResult{result: &result}, nil
}

// normalize 校验判题返回的状态，缺失的计数用测试结果补齐
func normalize(r *Result, totalCases int) (*Result, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	if !r.Status.Judged() {
		return nil, fmt.Errorf("%w: unexpected status %q", ErrUnavailable, r.Status)
	}
	if r.PassedCount == 0 && len(r.TestResults) > 0 {
		for _, tr := range r.TestResults {
			if tr.Passed {
				r.PassedCount++
			}
		}
	}
	if r.Status == model.StatusAccepted && totalCases > 0 && r.PassedCount < totalCases && len(r.TestResults) == totalCases {
		// 声称通过但用例未全部通过
		r.Status = model.StatusWrongAnswer
	}
	return r, nil
}
