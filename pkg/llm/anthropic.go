package llm

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/hireloop/resume-intake/internal/model"
	"github.com/hireloop/resume-intake/internal/resilience"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 512
	defaultQPS       = 4
)

const namePrompt = `Extract the most likely person full name from resume header lines.
Rules:
- Prefer real person names (2-4 tokens).
- Reject locations, skills, roles, and section titles.
- If uncertain, return an empty name and low confidence.

language=%s
emails=%s
phones=%s
candidate_lines:
%s

Return a valid JSON object: {"name": "<full name or empty>", "confidence": <0.0-1.0>, "reason": "<brief explanation>"}`

const sectionPrompt = `Classify a resume section into one of these labels only: summary, experience, education, skills, projects, certifications, contact, general.
Use heading and content. Favor contact when email/phone/link patterns exist.

language=%s
heading=%q
content_excerpt:
%s

Return a valid JSON object: {"section_type": "<label>", "confidence": <0.0-1.0>, "reason": "<brief explanation>"}`

// Options tunes the Anthropic-backed client.
type Options struct {
	Model       string
	MaxTokens   int64
	MaxAttempts int
	QPS         float64
}

// AnthropicClient implements Client using the official anthropic-sdk-go.
type AnthropicClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	retry     resilience.RetryConfig
	limiter   *rate.Limiter
}

// NewAnthropic creates a Client backed by the Anthropic API. Decode and
// validation failures retry up to opts.MaxAttempts; transport failures
// surface immediately.
func NewAnthropic(apiKey string, opts Options) *AnthropicClient {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	qps := opts.QPS
	if qps <= 0 {
		qps = defaultQPS
	}

	return &AnthropicClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		retry: resilience.RetryConfig{
			MaxAttempts: opts.MaxAttempts,
			ShouldRetry: IsDecodeError,
			OnRetry:     resilience.RetryLogger("anthropic", "structured completion"),
		},
		limiter: rate.NewLimiter(rate.Limit(qps), 1),
	}
}

// ResolveName asks the model for the person name in the given header lines.
func (c *AnthropicClient) ResolveName(ctx context.Context, req NameRequest) (*NameResult, error) {
	prompt := fmt.Sprintf(namePrompt,
		languageOrUnknown(req.Language),
		strings.Join(req.Emails, ", "),
		strings.Join(req.Phones, ", "),
		numberedLines(req.CandidateLines),
	)

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*NameResult, error) {
		text, err := c.complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		var res NameResult
		if err := decodeJSON(text, &res); err != nil {
			return nil, err
		}
		if err := validateName(&res); err != nil {
			return nil, err
		}
		return &res, nil
	})
}

// ClassifySection asks the model to classify one section.
func (c *AnthropicClient) ClassifySection(ctx context.Context, req SectionRequest) (*SectionResult, error) {
	prompt := fmt.Sprintf(sectionPrompt,
		languageOrUnknown(req.Language),
		req.Heading,
		req.ContentExcerpt,
	)

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*SectionResult, error) {
		text, err := c.complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		var res SectionResult
		if err := decodeJSON(text, &res); err != nil {
			return nil, err
		}
		if err := validateSection(&res); err != nil {
			return nil, err
		}
		return &res, nil
	})
}

// complete runs one message call and concatenates the text blocks.
func (c *AnthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "anthropic: rate limit wait")
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: sdk.Float(0),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func languageOrUnknown(lang model.Language) string {
	if lang == "" {
		return string(model.LanguageUnknown)
	}
	return string(lang)
}

func numberedLines(lines []string) string {
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, line)
	}
	return sb.String()
}
