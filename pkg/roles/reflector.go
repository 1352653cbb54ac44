package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/llm"
	"github.com/XiaoConstantine/ace-go/pkg/logging"
)

// ReflectionRequest carries everything the reflector needs to diagnose an
// attempt: the question, what was answered and why, the ground truth, and
// any feedback from the task environment.
type ReflectionRequest struct {
	Question     string
	Answer       string
	Reasoning    string
	GroundTruth  string
	Feedback     string
	CitedBullets []string
}

// BulletTag is the reflector's verdict on one cited bullet.
type BulletTag struct {
	BulletID string `json:"bullet_id"`
	Tag      string `json:"tag"`
}

// ReflectorOutput is the structured diagnosis of one attempt.
type ReflectorOutput struct {
	ErrorIdentification string      `json:"error_identification"`
	RootCause           string      `json:"root_cause"`
	Insight             string      `json:"insight"`
	BulletTags          []BulletTag `json:"bullet_tags,omitempty"`
}

// Reflector diagnoses attempts against ground truth and feedback.
type Reflector struct {
	client llm.Client
}

// NewReflector creates a reflector backed by the given client.
func NewReflector(client llm.Client) *Reflector {
	return &Reflector{client: client}
}

// Reflect analyzes one attempt. Bullet tags with unknown directions are
// dropped with a warning rather than failing the reflection.
func (r *Reflector) Reflect(ctx context.Context, req *ReflectionRequest) (*ReflectorOutput, error) {
	if req == nil || req.Question == "" {
		return nil, errors.New(errors.InvalidInput, "reflection request requires a question")
	}

	cited := "none"
	if len(req.CitedBullets) > 0 {
		cited = strings.Join(req.CitedBullets, ", ")
	}

	prompt := fmt.Sprintf(reflectorPromptTemplate,
		req.Question, req.Answer, req.Reasoning, req.GroundTruth, req.Feedback, cited)

	response, err := r.client.Generate(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, errors.LLMGenerationFailed, "reflector call failed")
	}

	var out ReflectorOutput
	if err := llm.ExtractJSON(response, &out); err != nil {
		return nil, errors.Wrap(err, errors.InvalidResponse, "reflector returned unparseable output")
	}

	log := logging.GetLogger()
	valid := out.BulletTags[:0]
	for _, tag := range out.BulletTags {
		if tag.BulletID == "" || (tag.Tag != "helpful" && tag.Tag != "harmful") {
			log.Warn(ctx, "dropping malformed bullet tag %+v", tag)
			continue
		}
		valid = append(valid, tag)
	}
	out.BulletTags = valid

	return &out, nil
}
