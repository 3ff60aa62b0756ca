package model

import (
	"log"
	"os"
	"time"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "ORCH_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewBackend creates a backend based on the ORCH_MODE environment variable.
// If ORCH_MODE=MOCK, returns a MockBackend; otherwise returns a gateway Client.
func NewBackend(baseURL, apiKey string, timeout time.Duration) Backend {
	if os.Getenv(EnvMode) == ModeMock {
		log.Println("ORCH_MODE=MOCK detected, using mock model backend")
		return NewMockBackend()
	}
	return NewClient(baseURL, apiKey, timeout)
}
