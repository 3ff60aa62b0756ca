package model

import (
	"context"
	"fmt"
	"sync"
)

// MockBackend is a scriptable Backend for tests and for running the engine in
// mock mode without a gateway. Replies are consumed from queues; when a queue
// is empty a deterministic canned reply is produced instead.
type MockBackend struct {
	mu sync.Mutex

	generateQueue []mockGenerate
	scoreQueue    []mockScore
	metricsQueue  []mockMetrics

	generateCalls int
	scoreCalls    int
	metricsCalls  int
}

type mockGenerate struct {
	text string
	err  error
}

type mockScore struct {
	value float64
	err   error
}

type mockMetrics struct {
	values map[string]float64
	err    error
}

// NewMockBackend creates an empty mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Ensure MockBackend implements Backend.
var _ Backend = (*MockBackend)(nil)

// QueueGenerate enqueues one Generate reply (or error).
func (m *MockBackend) QueueGenerate(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateQueue = append(m.generateQueue, mockGenerate{text: text, err: err})
}

// QueueScore enqueues one Score reply (or error).
func (m *MockBackend) QueueScore(value float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoreQueue = append(m.scoreQueue, mockScore{value: value, err: err})
}

// QueueMetrics enqueues one AssessMetrics reply (or error).
func (m *MockBackend) QueueMetrics(values map[string]float64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metricsQueue = append(m.metricsQueue, mockMetrics{values: values, err: err})
}

// GenerateCalls returns how many times Generate was invoked.
func (m *MockBackend) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}

// Generate implements Backend.
func (m *MockBackend) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.generateCalls++
	var next *mockGenerate
	if len(m.generateQueue) > 0 {
		next = &m.generateQueue[0]
		m.generateQueue = m.generateQueue[1:]
	}
	m.mu.Unlock()

	if next != nil {
		if next.err != nil {
			return nil, next.err
		}
		return &GenerateResponse{
			Text:  next.text,
			Usage: Usage{PromptTokens: len(req.Prompt) / 4, CompletionTokens: len(next.text) / 4, TotalTokens: len(req.Prompt)/4 + len(next.text)/4},
		}, nil
	}

	text := fmt.Sprintf("[MOCK %s] artifact for: %s", req.Model, truncate(req.Prompt, 80))
	return &GenerateResponse{
		Text:  text,
		Usage: Usage{PromptTokens: len(req.Prompt) / 4, CompletionTokens: len(text) / 4, TotalTokens: len(req.Prompt)/4 + len(text)/4},
	}, nil
}

// Score implements Backend.
func (m *MockBackend) Score(ctx context.Context, model, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.scoreCalls++
	var next *mockScore
	if len(m.scoreQueue) > 0 {
		next = &m.scoreQueue[0]
		m.scoreQueue = m.scoreQueue[1:]
	}
	m.mu.Unlock()

	if next != nil {
		return next.value, next.err
	}
	return 0.9, nil
}

// AssessMetrics implements Backend.
func (m *MockBackend) AssessMetrics(ctx context.Context, model, artifact, domainTag string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.metricsCalls++
	var next *mockMetrics
	if len(m.metricsQueue) > 0 {
		next = &m.metricsQueue[0]
		m.metricsQueue = m.metricsQueue[1:]
	}
	m.mu.Unlock()

	if next != nil {
		return next.values, next.err
	}
	return map[string]float64{
		"coverage":        0.98,
		"bug_rate":        0.05,
		"complexity":      3,
		"maintainability": 0.9,
	}, nil
}
