package openai

import (
	"sync"

	"docgraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client talks to OpenAI-compatible endpoints for the chat and embedding
// models used by extraction, retrieval and answer generation. Separate
// underlying clients allow the embedding endpoint to differ from the chat
// endpoint.
//
// A Client should be created using NewClient.
type Client struct {
	embeddingModel string
	chatModel      string

	embeddingURL string
	embeddingKey string
	chatURL      string
	chatKey      string

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewClientParams defines the configuration parameters for creating a Client.
//
// EmbeddingModel specifies the model used for embeddings.
// ChatModel specifies the default model for completions and chat.
// EmbeddingURL and EmbeddingKey configure the embedding API endpoint.
// ChatURL and ChatKey configure the chat/completion API endpoint.
type NewClientParams struct {
	EmbeddingModel string
	ChatModel      string

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string
}

// NewClient creates a Client configured with the provided parameters.
//
// Example:
//
//	params := openai.NewClientParams{
//		EmbeddingModel: "text-embedding-3-small",
//		ChatModel:      "gpt-4o-mini",
//		EmbeddingKey:   os.Getenv("OPENAI_API_KEY"),
//		ChatKey:        os.Getenv("OPENAI_API_KEY"),
//	}
//	client := openai.NewClient(params)
func NewClient(params NewClientParams) *Client {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)
	embedClient := newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey)

	return &Client{
		embeddingModel: params.EmbeddingModel,
		chatModel:      params.ChatModel,

		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,
		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient:      chatClient,
		EmbeddingClient: embedClient,
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
