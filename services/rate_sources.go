package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"plasprint_ai/logger"
)

// HTTPStatusError 汇率来源返回非 200 状态码
type HTTPStatusError struct {
	Source     string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Source, e.StatusCode)
}

func isRateLimitError(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func getJSON(ctx context.Context, client *http.Client, source, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "plasprint-ai/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &HTTPStatusError{Source: source, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", source, err)
	}
	return nil
}

// AwesomeAPISource 主汇率来源：economia.awesomeapi.com.br 最新报价
type AwesomeAPISource struct {
	baseURL string
	client  *http.Client
}

func NewAwesomeAPISource(baseURL string, timeout time.Duration) *AwesomeAPISource {
	return &AwesomeAPISource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *AwesomeAPISource) Name() string { return "awesomeapi" }

type awesomeQuote struct {
	Bid string `json:"bid"`
}

func (s *AwesomeAPISource) FetchRate(ctx context.Context) (float64, error) {
	var body map[string]awesomeQuote
	if err := getJSON(ctx, s.client, s.Name(), s.baseURL+"/json/last/USD-BRL", &body); err != nil {
		return 0, err
	}
	quote, ok := body["USDBRL"]
	if !ok {
		return 0, fmt.Errorf("awesomeapi: USDBRL missing from response")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(quote.Bid), 64)
	if err != nil {
		return 0, fmt.Errorf("awesomeapi: parse bid %q: %w", quote.Bid, err)
	}
	return v, nil
}

// YahooChartSource 备用来源：Yahoo Finance 日线，取最近一个收盘价
type YahooChartSource struct {
	baseURL string
	client  *http.Client
}

func NewYahooChartSource(baseURL string, timeout time.Duration) *YahooChartSource {
	return &YahooChartSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *YahooChartSource) Name() string { return "yahoo" }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (s *YahooChartSource) FetchRate(ctx context.Context) (float64, error) {
	var body yahooChart
	url := s.baseURL + "/v8/finance/chart/BRL=X?range=5d&interval=1d"
	if err := getJSON(ctx, s.client, s.Name(), url, &body); err != nil {
		return 0, err
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return 0, fmt.Errorf("yahoo: empty chart")
	}
	closes := body.Chart.Result[0].Indicators.Quote[0].Close
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil && *closes[i] > 0 {
			return *closes[i], nil
		}
	}
	return 0, fmt.Errorf("yahoo: no daily close")
}

// RetryOnRateLimit 仅在来源返回 429 时按指数退避重试，其他错误立即放弃
type RetryOnRateLimit struct {
	inner      RateSource
	maxRetries int
	base       time.Duration
}

func NewRetryOnRateLimit(inner RateSource, maxRetries int, base time.Duration) *RetryOnRateLimit {
	return &RetryOnRateLimit{inner: inner, maxRetries: maxRetries, base: base}
}

func (r *RetryOnRateLimit) Name() string { return r.inner.Name() }

func (r *RetryOnRateLimit) FetchRate(ctx context.Context) (float64, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * r.base
			logger.Info("汇率来源限流，等待重试", "source", r.Name(), "attempt", attempt, "backoff", backoff)

			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		v, err := r.inner.FetchRate(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !isRateLimitError(err) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("%s: max retries exceeded: %w", r.Name(), lastErr)
}
