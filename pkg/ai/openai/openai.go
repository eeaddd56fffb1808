package openai

import (
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/worklens/backend/pkg/ai"
)

// Client implements ai.AIClient against an OpenAI-compatible chat API.
// Extraction and answer generation may use different models; both share one
// underlying HTTP client.
type Client struct {
	answerModel     string
	extractionModel string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	chat *openai.Client
}

// NewClientParams configures a Client.
//
// AnswerModel is used for free-text generation, ExtractionModel for
// structured output. BaseURL may point at any OpenAI-compatible endpoint;
// when empty the official API is used.
type NewClientParams struct {
	AnswerModel     string
	ExtractionModel string

	BaseURL string
	APIKey  string
}

// NewClient creates a Client from the given parameters.
func NewClient(params NewClientParams) *Client {
	options := []option.RequestOption{
		option.WithAPIKey(params.APIKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	chat := openai.NewClient(options...)

	return &Client{
		answerModel:     params.AnswerModel,
		extractionModel: params.ExtractionModel,
		chat:            &chat,
	}
}
