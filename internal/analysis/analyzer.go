package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/internal/resilience"
	"github.com/sells-group/sentiment-cli/pkg/anthropic"
)

const classifySystemPrompt = `You classify customer feedback about a mobile carrier.
Read the feedback and reply with exactly one word describing the customer's sentiment:
good, neutral, or bad. Reply with the single word only, no punctuation or explanation.`

const insightSystemPrompt = `You are a customer-experience analyst for a mobile carrier.
You receive a piece of customer feedback together with its classified sentiment label.
Reply with one short, concrete, actionable suggestion (a single sentence) for how the
business should respond or improve, proportionate to the severity of the label.`

// Analyzer classifies feedback text and generates improvement insights.
type Analyzer struct {
	client anthropic.Client
	model  string
}

// NewAnalyzer creates an Analyzer using the given model.
func NewAnalyzer(client anthropic.Client, modelID string) *Analyzer {
	return &Analyzer{client: client, model: modelID}
}

// Classify assigns a sentiment label to feedback text. The raw reply is
// normalized, so an off-script model answer degrades to neutral rather
// than failing the run.
func (a *Analyzer) Classify(ctx context.Context, text string) (model.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return "", eris.New("analysis: empty text")
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 8,
		System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", wrapLLMError(err, "analysis: classify")
	}
	resp.Usage.LogCost(a.model, "classify")

	return model.NormalizeSentiment(resp.Text()), nil
}

// GenerateInsight produces one actionable suggestion for non-good feedback.
// The classified label rides along so a bad item draws a sharper suggestion
// than a neutral one.
func (a *Analyzer) GenerateInsight(ctx context.Context, text string, label model.Sentiment) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", eris.New("analysis: empty text")
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 256,
		System:    anthropic.BuildCachedSystemBlocks(insightSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Sentiment: %s\n\nFeedback:\n%s", label, text)},
		},
	})
	if err != nil {
		return "", wrapLLMError(err, "analysis: generate insight")
	}
	resp.Usage.LogCost(a.model, "insight")

	insight := strings.TrimSpace(resp.Text())
	if insight == "" {
		return "", eris.New("analysis: empty insight reply")
	}
	return insight, nil
}

// wrapLLMError tags provider quota and availability failures as transient so
// callers can trigger cooldowns via resilience.IsRateLimited / IsTransient.
func wrapLLMError(err error, msg string) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return eris.Wrap(resilience.NewTransientError(err, apiErr.StatusCode), msg)
	}
	return eris.Wrap(err, msg)
}
