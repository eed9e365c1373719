package analysis

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sentiment-cli/internal/model"
	"github.com/sells-group/sentiment-cli/pkg/anthropic"
)

// mockLLM implements anthropic.Client for testing.
type mockLLM struct {
	replies  []string
	err      error
	requests []anthropic.MessageRequest
}

func (m *mockLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: reply}},
	}, nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  model.Sentiment
	}{
		{name: "clean label", reply: "good", want: model.SentimentGood},
		{name: "decorated label", reply: " Bad.\n", want: model.SentimentBad},
		{name: "off-script reply", reply: "the customer seems upset", want: model.SentimentNeutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLM{replies: []string{tt.reply}}
			a := NewAnalyzer(llm, "test-model")

			got, err := a.Classify(context.Background(), "my bill doubled")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUsesCachedSystemPrompt(t *testing.T) {
	llm := &mockLLM{replies: []string{"neutral"}}
	a := NewAnalyzer(llm, "test-model")

	_, err := a.Classify(context.Background(), "it's fine")
	require.NoError(t, err)

	require.Len(t, llm.requests, 1)
	require.Len(t, llm.requests[0].System, 1)
	require.NotNil(t, llm.requests[0].System[0].CacheControl)
	assert.Equal(t, "test-model", llm.requests[0].Model)
}

func TestClassifyErrors(t *testing.T) {
	a := NewAnalyzer(&mockLLM{err: eris.New("boom")}, "test-model")

	_, err := a.Classify(context.Background(), "text")
	require.Error(t, err)

	_, err = a.Classify(context.Background(), "   ")
	require.Error(t, err)
}

func TestGenerateInsight(t *testing.T) {
	llm := &mockLLM{replies: []string{"  Offer a plan review call to address the billing increase.  "}}
	a := NewAnalyzer(llm, "test-model")

	insight, err := a.GenerateInsight(context.Background(), "my bill doubled", model.SentimentBad)
	require.NoError(t, err)
	assert.Equal(t, "Offer a plan review call to address the billing increase.", insight)
}

func TestGenerateInsightIncludesLabel(t *testing.T) {
	llm := &mockLLM{replies: []string{"Follow up with a billing specialist."}}
	a := NewAnalyzer(llm, "test-model")

	_, err := a.GenerateInsight(context.Background(), "my bill doubled", model.SentimentBad)
	require.NoError(t, err)

	require.Len(t, llm.requests, 1)
	require.Len(t, llm.requests[0].Messages, 1)
	prompt := llm.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "Sentiment: bad")
	assert.Contains(t, prompt, "my bill doubled")

	// A different label produces a different prompt for the same text.
	llm2 := &mockLLM{replies: []string{"Check in after the next bill cycle."}}
	a2 := NewAnalyzer(llm2, "test-model")
	_, err = a2.GenerateInsight(context.Background(), "my bill doubled", model.SentimentNeutral)
	require.NoError(t, err)
	assert.NotEqual(t, prompt, llm2.requests[0].Messages[0].Content)
	assert.Contains(t, llm2.requests[0].Messages[0].Content, "Sentiment: neutral")
}

func TestGenerateInsightEmptyReply(t *testing.T) {
	a := NewAnalyzer(&mockLLM{replies: []string{"   "}}, "test-model")

	_, err := a.GenerateInsight(context.Background(), "my bill doubled", model.SentimentBad)
	require.Error(t, err)
}
