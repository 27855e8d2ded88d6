// Package advisor produces remediation guidance for confirmed anomalies
// through an OpenAI-compatible chat completion API.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// ErrDisabled is returned when the advisor is used without being
// configured. Remediation text is an optional enrichment; callers should
// treat this as "no advice available", not a failure.
var ErrDisabled = errors.New("remediation advisor is not configured")

const systemPrompt = "You are an application security engineer reviewing " +
	"business-logic test findings. For each finding, explain the likely root " +
	"cause and give concrete, framework-agnostic remediation steps. Be terse " +
	"and specific; do not restate the finding."

// Advisor wraps a chat completion client with the report context.
type Advisor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// New creates an advisor from the advisor settings. Returns ErrDisabled
// when the advisor is switched off or no API key is set.
func New(cfg types.AdvisorSettings) (*Advisor, error) {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil, ErrDisabled
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	return &Advisor{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}, nil
}

// Advise returns remediation guidance for one anomaly in its test case
// context.
func (a *Advisor) Advise(ctx context.Context, anomaly *types.Anomaly, tc *types.TestCase) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: findingPrompt(anomaly, tc)},
		},
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("remediation request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("remediation request: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func findingPrompt(anomaly *types.Anomaly, tc *types.TestCase) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Finding: %s (severity %s, confidence %.2f)\n", anomaly.Type, anomaly.Severity, anomaly.ConfidenceScore)
	if anomaly.IsPotentialVulnerability {
		fmt.Fprintf(&b, "Flagged as potential vulnerability: %s\n", anomaly.VulnerabilityType)
	}
	fmt.Fprintf(&b, "Observed: %s\n", anomaly.Description)
	if anomaly.OriginalStatus != 0 || anomaly.ReplayedStatus != 0 {
		fmt.Fprintf(&b, "Status change: %d -> %d\n", anomaly.OriginalStatus, anomaly.ReplayedStatus)
	}
	if tc != nil {
		fmt.Fprintf(&b, "Triggering mutation: %s (%s category)\n", tc.Type, tc.Category)
		if tc.PayloadValue != "" {
			fmt.Fprintf(&b, "Payload: %s\n", tc.PayloadValue)
		}
	}
	return b.String()
}
