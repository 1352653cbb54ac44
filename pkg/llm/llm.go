// Package llm defines the minimal completion contract the ACE roles
// consume. Providers live in pkg/llms; the core playbook engine never
// touches this package.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// Client submits a prompt and returns the raw completion text. The roles
// are responsible for parsing structure out of the response.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ExtractJSON locates and decodes the first JSON object or array embedded
// in a completion. LLMs routinely wrap JSON in prose or markdown fences,
// so a direct unmarshal of the whole response is not enough.
func ExtractJSON(response string, v any) error {
	text := strings.TrimSpace(response)

	// Strip a markdown fence if the whole response is wrapped in one.
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx != -1 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return errors.New(errors.InvalidResponse, "no JSON found in response")
	}

	closing := byte('}')
	if text[start] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(text, closing)
	if end <= start {
		return errors.New(errors.InvalidResponse, "unterminated JSON in response")
	}

	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return errors.Wrap(err, errors.InvalidResponse, "failed to decode JSON from response")
	}
	return nil
}
