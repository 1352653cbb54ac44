package llm

import (
	"context"
	"sync"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// DummyClient returns scripted responses in order, then repeats the last
// one. It exists for tests, examples and offline smoke runs where a real
// provider is unavailable.
type DummyClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
}

// NewDummyClient creates a client that replays the given responses.
func NewDummyClient(responses ...string) *DummyClient {
	return &DummyClient{responses: responses}
}

// Generate returns the next scripted response and records the prompt.
func (c *DummyClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := errors.CheckContext(ctx, "dummy generate"); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.prompts = append(c.prompts, prompt)
	if len(c.responses) == 0 {
		return "", errors.New(errors.LLMGenerationFailed, "dummy client has no responses")
	}

	idx := c.calls
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	c.calls++
	return c.responses[idx], nil
}

// Calls returns how many times Generate has been invoked.
func (c *DummyClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Prompts returns a copy of every prompt seen, in order.
func (c *DummyClient) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.prompts))
	copy(out, c.prompts)
	return out
}
