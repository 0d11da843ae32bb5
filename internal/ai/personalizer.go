// Package ai rewrites template recommendation text into friendlier,
// subject-specific wording using the Anthropic API.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/vitality/internal/types"
)

// ModelHaiku is the cost-efficient default for short rewrites
const ModelHaiku = "claude-3-5-haiku-20241022"

// maxTextBytes bounds the stored recommendation text
const maxTextBytes = 1000

// ErrEmptyResponse is returned when the model produced no usable text
var ErrEmptyResponse = errors.New("empty response from model")

// Completer sends a single prompt and returns the model's text
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds personalizer configuration
type Config struct {
	APIKey        string        // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model         string        // Model to use (default: claude-3-5-haiku-20241022)
	MaxConcurrent int           // Concurrent API calls (default: 3)
	Timeout       time.Duration // Per-call timeout (default: 30s)
	Logger        *slog.Logger
}

// Personalizer implements recommend.Personalizer
type Personalizer struct {
	completer Completer
	sem       *semaphore.Weighted // Limits concurrent API calls
	timeout   time.Duration
	logger    *slog.Logger
}

// NewPersonalizer creates a personalizer backed by the Anthropic API
func NewPersonalizer(cfg Config) (*Personalizer, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}
	model := cfg.Model
	if model == "" {
		model = ModelHaiku
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewPersonalizerWithCompleter(&anthropicCompleter{client: &client, model: model}, cfg), nil
}

// NewPersonalizerWithCompleter creates a personalizer around any Completer
func NewPersonalizerWithCompleter(c Completer, cfg Config) *Personalizer {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Personalizer{
		completer: c,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		timeout:   timeout,
		logger:    logger,
	}
}

// Personalize returns rewritten advice text for rec. rec is not modified.
func (p *Personalizer) Personalize(ctx context.Context, rec *types.Recommendation) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("failed to acquire AI slot: %w", err)
	}
	defer p.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	text, err := p.completer.Complete(callCtx, buildPrompt(rec))
	if err != nil {
		return "", fmt.Errorf("personalization failed for %s: %w", rec.ID, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	p.logger.Debug("personalized recommendation",
		"recommendation", rec.ID, "metric", rec.Metric, "duration", time.Since(start))
	return safeTruncateString(text, maxTextBytes), nil
}

func buildPrompt(rec *types.Recommendation) string {
	b := rec.Basis
	return fmt.Sprintf(`You are writing a short, supportive note for someone tracking their fertility health.

Rewrite the advice below in a warm, plain-language tone. Keep every factual claim,
do not add medical diagnoses, and keep it under 80 words. Reply with the note only.

Metric: %s
Latest value: %.1f (goal %.1f)
Trend: %s (confidence %.2f over %d samples)
Status: %s

Advice:
%s`,
		rec.Metric, b.Status.Latest, b.Status.Target,
		b.Trend.Direction, b.Trend.Confidence, b.Trend.Samples,
		b.Status.State, rec.Text)
}

// anthropicCompleter calls the Messages API
type anthropicCompleter struct {
	client *anthropic.Client
	model  string
}

func (a *anthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// safeTruncateString truncates a string to maxLen bytes while preserving UTF-8 encoding
func safeTruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncated := s[:maxLen]
	// A UTF-8 sequence is at most 4 bytes
	for i := 0; i < 4 && len(truncated) > 0; i++ {
		if utf8.ValidString(truncated) {
			return truncated
		}
		truncated = truncated[:len(truncated)-1]
	}
	return truncated
}
