package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "DEVMATE_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewClient creates an LLM client based on the DEVMATE_MODE environment
// variable. If DEVMATE_MODE=MOCK, returns a MockClient; otherwise returns a
// real HTTP client.
func NewClient(baseURL, apiKey string, timeout time.Duration) Client {
	mode := os.Getenv(EnvMode)

	if mode == ModeMock {
		log.Println("DEVMATE_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}

	return NewHTTPClient(baseURL, apiKey, timeout)
}
