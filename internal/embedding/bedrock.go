package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// bedrockClient is the subset of the Bedrock Runtime client BedrockEmbedder
// calls, narrowed for testability.
type bedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockEmbedder produces embeddings via AWS Bedrock's Titan embedding
// models. It is the production embedding backend; ONNXEmbedder and
// MockEmbedder serve as local/offline fallbacks.
type BedrockEmbedder struct {
	client     bedrockClient
	modelID    string
	dimensions int
	cache      *EmbeddingCache
}

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// NewBedrockEmbedder creates a Bedrock-backed embedder for the given Titan
// model in the given region.
func NewBedrockEmbedder(ctx context.Context, region, modelID string, dimensions, cacheSize int) (*BedrockEmbedder, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockEmbedder{
		client:     bedrockruntime.NewFromConfig(cfg),
		modelID:    modelID,
		dimensions: dimensions,
		cache:      NewEmbeddingCache(cacheSize),
	}, nil
}

// Embed returns the embedding for text, using cache when available.
func (e *BedrockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	body, err := json.Marshal(titanEmbedRequest{InputText: text})
	if err != nil {
		return nil, fmt.Errorf("marshal titan request: %w", err)
	}

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke bedrock model: %w", err)
	}

	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal titan response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("bedrock returned an empty embedding")
	}

	NormalizeL2Slice(resp.Embedding)
	e.cache.Set(text, resp.Embedding)
	return resp.Embedding, nil
}

// EmbedBatch calls Embed for each text. Titan's embedding API has no
// native batch endpoint.
func (e *BedrockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *BedrockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying HTTP client has no resources to release.
func (e *BedrockEmbedder) Close() error {
	return nil
}
