package embedding

import (
	"log"
	"os"
	"time"
)

// NewEngine creates an embedding engine based on the DEVMATE_MODE environment
// variable. If DEVMATE_MODE=MOCK or no API key is configured, returns the
// deterministic local engine; otherwise the OpenAI-compatible HTTP engine.
func NewEngine(baseURL, apiKey, model string, timeout time.Duration) Engine {
	if os.Getenv("DEVMATE_MODE") == "MOCK" || apiKey == "" {
		log.Println("using local embedding engine")
		return NewLocalEngine()
	}
	return NewOpenAIEngine(baseURL, apiKey, model, timeout)
}
