package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"interview_pilot_backend/internal/config"
	"interview_pilot_backend/pkg/monitoring"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Completer 外部模型补全服务。返回原始文本，调用方自行定位并
// 校验其中的 JSON 对象。重试/限流归本层，上层不再重试。
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type AIService struct {
	config  config.AIConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewAIService(cfg config.AIConfig) *AIService {
	return &AIService{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
	}
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Complete 单次聊天补全。429/5xx 按指数退避重试，重试耗尽返回最后错误
func (s *AIService) Complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	delay := 800 * time.Millisecond

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		content, err := s.doComplete(ctx, system, user)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if _, retryable := err.(*retryableError); !retryable {
			return "", err
		}
	}
	return "", lastErr
}

func (s *AIService) doComplete(ctx context.Context, system, user string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody := chatCompletionRequest{
		Model: s.config.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &retryableError{err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", &retryableError{apiErr}
		}
		return "", apiErr
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// instrumentedCompleter 补全调用计数包装
type instrumentedCompleter struct {
	inner Completer
	kind  string
}

func InstrumentCompleter(inner Completer, kind string) Completer {
	return &instrumentedCompleter{inner: inner, kind: kind}
}

func (c *instrumentedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	content, err := c.inner.Complete(ctx, system, user)
	status := "ok"
	if err != nil {
		status = "error"
	}
	monitoring.CompletionCalls.WithLabelValues(c.kind, status).Inc()
	return content, err
}
