package openaiEmbedding

import (
	"context"
	"sync"

	"github.com/akolanti/docpipeline/internal/config"
	"github.com/akolanti/docpipeline/internal/customHttpClient"
	"github.com/akolanti/docpipeline/internal/embedding"
	"github.com/akolanti/docpipeline/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	logger *logger_i.Logger
	once   sync.Once
)

type client struct {
	openAi openai.Client
	model  string
}

func GetOpenAIEmbeddingClient(modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_embedding")
	})
	if apikey == "" {
		logger.Error("OpenAI API key is not set")
		return nil
	}
	return &client{
		openAi: openai.NewClient(
			option.WithAPIKey(apikey),
			option.WithHTTPClient(customHttpClient.PooledClient()),
		),
		model: modelName,
	}
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	log.Debug("Starting OpenAI embedding call", "chunks", len(chunks))

	res, err := c.openAi.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(config.EmbeddingOutputDimensionality)),
	})
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err.Error())
		return nil, err
	}

	vectors := make([][]float32, len(res.Data))
	for _, item := range res.Data {
		vector := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vector[i] = float32(v)
		}
		vectors[item.Index] = vector
	}
	return vectors, nil
}
