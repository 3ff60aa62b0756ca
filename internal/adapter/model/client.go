package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible model gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a gateway client. The timeout bounds a single HTTP call;
// per-profile call timeouts are applied by the caller via context.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

type errorResponse struct {
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// statusError carries the HTTP status for transient/permanent classification.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway error [%d]: %s", e.status, e.message)
}

// IsTransient reports whether an error is worth retrying: network failures,
// timeouts, throttling and server-side errors. Client-side errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusRequestTimeout ||
			se.status == http.StatusTooManyRequests ||
			se.status >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Generate implements Backend via the chat completions endpoint.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	messages := []chatMessage{{Role: "system", Content: "You are a build agent. Produce the requested artifact directly."}}
	for _, snippet := range req.Context {
		messages = append(messages, chatMessage{Role: "system", Content: "Reference material:\n" + snippet})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	resp, err := c.chat(ctx, &chatCompletionRequest{Model: req.Model, Messages: messages})
	if err != nil {
		return nil, err
	}
	out := &GenerateResponse{Text: resp.text()}
	if resp.Usage != nil {
		out.Usage = *resp.Usage
	}
	return out, nil
}

// Score implements Backend. The grader must reply with a bare JSON number;
// anything else surfaces as a parse error for the caller's neutral default.
func (c *Client) Score(ctx context.Context, model, text string) (float64, error) {
	temperature := 0.0
	resp, err := c.chat(ctx, &chatCompletionRequest{
		Model:       model,
		Temperature: &temperature,
		Messages: []chatMessage{
			{Role: "system", Content: "Rate the acceptability of the following output between 0 and 1. Reply with a single JSON number and nothing else."},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return 0, err
	}
	return DecodeScore(resp.text())
}

// AssessMetrics implements Backend. The grader must reply with a flat JSON
// object of metric name to number.
func (c *Client) AssessMetrics(ctx context.Context, model, artifact, domainTag string) (map[string]float64, error) {
	temperature := 0.0
	resp, err := c.chat(ctx, &chatCompletionRequest{
		Model:       model,
		Temperature: &temperature,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(
				"Grade the following %s artifact. Reply with a flat JSON object mapping metric names to numbers and nothing else.", domainTag)},
			{Role: "user", Content: artifact},
		},
	})
	if err != nil {
		return nil, err
	}
	return DecodeMetrics(resp.text())
}

func (r *chatCompletionResponse) text() string {
	if len(r.Choices) == 0 || r.Choices[0].Message == nil {
		return ""
	}
	return r.Choices[0].Message.Content
}

func (c *Client) chat(ctx context.Context, req *chatCompletionRequest) (*chatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return nil, &statusError{status: resp.StatusCode, message: errResp.Error.Message}
		}
		return nil, &statusError{status: resp.StatusCode, message: string(respBody)}
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}
