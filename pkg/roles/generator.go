// Package roles implements the three LLM-driven ACE roles. The Generator
// answers using the current playbook, the Reflector diagnoses the attempt,
// and the Curator turns the diagnosis into a delta batch for the playbook
// engine. The roles consume the playbook's data model but never own its
// invariants.
package roles

import (
	"context"
	"fmt"
	"regexp"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/llm"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
)

// GeneratorOutput is the structured result of one answer attempt.
type GeneratorOutput struct {
	Answer       string   `json:"answer"`
	Reasoning    string   `json:"reasoning"`
	CitedBullets []string `json:"cited_bullets,omitempty"`
	UsedPlaybook bool     `json:"used_playbook"`
}

// Generator answers questions using the current playbook as context.
type Generator struct {
	client llm.Client
}

// NewGenerator creates a generator backed by the given client.
func NewGenerator(client llm.Client) *Generator {
	return &Generator{client: client}
}

var citationRegex = regexp.MustCompile(`\[([^\s\[\]]+-\d{5})\]`)

// Generate answers the question, injecting the playbook into the prompt
// and detecting which bullets the model cited in its reasoning.
func (g *Generator) Generate(ctx context.Context, question string, pb *playbook.Playbook) (*GeneratorOutput, error) {
	if question == "" {
		return nil, errors.New(errors.InvalidInput, "question cannot be empty")
	}

	playbookSection := ""
	if prompt := pb.AsPrompt(); prompt != "" {
		playbookSection = generatorPlaybookHeader + prompt + "\n"
	}

	response, err := g.client.Generate(ctx, fmt.Sprintf(generatorPromptTemplate, playbookSection, question))
	if err != nil {
		return nil, errors.Wrap(err, errors.LLMGenerationFailed, "generator call failed")
	}

	var out GeneratorOutput
	if err := llm.ExtractJSON(response, &out); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "generator returned unparseable output")
	}
	if out.Answer == "" {
		return nil, errors.New(errors.InvalidResponse, "generator returned no answer")
	}

	out.CitedBullets = DetectCitations(out.Reasoning)
	out.UsedPlaybook = playbookSection != ""
	return &out, nil
}

// DetectCitations finds bullet id references like [general-00001] in text,
// deduplicated in first-seen order.
func DetectCitations(text string) []string {
	matches := citationRegex.FindAllStringSubmatch(text, -1)
	var citations []string
	seen := make(map[string]bool)

	for _, match := range matches {
		if len(match) > 1 && !seen[match[1]] {
			citations = append(citations, match[1])
			seen[match[1]] = true
		}
	}
	return citations
}
