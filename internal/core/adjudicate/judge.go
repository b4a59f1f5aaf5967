package adjudicate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/contactsync/internal/config"
	"github.com/agenthands/contactsync/internal/core/common"
	"github.com/agenthands/contactsync/internal/core/model"
	"github.com/agenthands/contactsync/internal/core/similarity"
	"github.com/agenthands/contactsync/internal/llm"
)

// ErrMalformedResponse marks a reply that arrived but could not be understood.
// It is never retried.
var ErrMalformedResponse = errors.New("malformed reasoning response")

// Request is one candidate pair plus the rule-based comparison.
type Request struct {
	Profile model.NormalizedRecord
	Contact model.NormalizedRecord
	Rule    similarity.Result
}

// Judgment is the reasoning service's verdict. Available is false when the
// service could not be reached; Err then holds the cause.
type Judgment struct {
	Label     model.AILabel `json:"label"`
	Reasoning string        `json:"reasoning"`
	Available bool          `json:"available"`
	Attempts  int           `json:"attempts"`
	Err       error         `json:"-"`
}

// ReasoningService judges whether two records describe the same person.
type ReasoningService interface {
	Judge(ctx context.Context, req Request) (Judgment, error)
}

type judgeResponse struct {
	Confidence string `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// LLMJudge implements ReasoningService on top of an llm.LLMClient.
type LLMJudge struct {
	LLM    llm.LLMClient
	Prompt string
}

func NewLLMJudge(llmClient llm.LLMClient, prompt string) *LLMJudge {
	if prompt == "" {
		prompt = config.DefaultJudgePrompt
	}
	return &LLMJudge{
		LLM:    llmClient,
		Prompt: prompt,
	}
}

func (j *LLMJudge) Judge(ctx context.Context, req Request) (Judgment, error) {
	prompt := fmt.Sprintf(j.Prompt,
		serializeRecord(req.Profile),
		serializeRecord(req.Contact),
		serializeRule(req.Rule),
	)

	response, err := j.LLM.Generate(ctx, prompt)
	if err != nil {
		return Judgment{}, fmt.Errorf("failed to generate judgment: %w", err)
	}

	parsed, err := common.ParseJSON[judgeResponse](response)
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	label := model.ParseAILabel(parsed.Confidence)
	if label == "" {
		return Judgment{}, fmt.Errorf("%w: unknown confidence %q", ErrMalformedResponse, common.Truncate(parsed.Confidence, 40))
	}

	return Judgment{
		Label:     label,
		Reasoning: strings.TrimSpace(parsed.Reasoning),
		Available: true,
	}, nil
}

func serializeRecord(r model.NormalizedRecord) string {
	var b strings.Builder
	field := func(name string, f model.Field) {
		v := "(missing)"
		if f.Present {
			v = f.Value
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, v)
	}
	field("Name", r.FullName)
	field("Email", r.Email)
	field("Company", r.Organization)
	field("Title", r.Title)
	return b.String()
}

func serializeRule(res similarity.Result) string {
	keys := make([]string, 0, len(res.SubScores))
	for k := range res.SubScores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Overall score: %.2f\n", res.Score)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %.2f\n", k, res.SubScores[k])
	}
	fmt.Fprintf(&b, "Matching fields: %s\n", joinOrNone(res.MatchingFields))
	fmt.Fprintf(&b, "Conflicting fields: %s\n", joinOrNone(res.ConflictingFields))
	return b.String()
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}
