package embedding

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

type fakeBedrockClient struct {
	calls int
}

func (f *fakeBedrockClient) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls++
	body, _ := json.Marshal(titanEmbedResponse{
		Embedding:           []float32{0.1, 0.2, 0.3, 0.4},
		InputTextTokenCount: 3,
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func TestBedrockEmbedder_EmbedAndCache(t *testing.T) {
	fake := &fakeBedrockClient{}
	e := &BedrockEmbedder{client: fake, modelID: "amazon.titan-embed-text-v2:0", dimensions: 4, cache: NewEmbeddingCache(10)}

	emb, err := e.Embed(context.Background(), "power of attorney")
	if err != nil {
		t.Fatal(err)
	}
	if len(emb) != 4 {
		t.Errorf("expected 4 dims, got %d", len(emb))
	}

	if _, err := e.Embed(context.Background(), "power of attorney"); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 1 {
		t.Errorf("expected cache hit on second call, got %d invocations", fake.calls)
	}
}

func TestBedrockEmbedder_EmbedBatch(t *testing.T) {
	fake := &fakeBedrockClient{}
	e := &BedrockEmbedder{client: fake, modelID: "amazon.titan-embed-text-v2:0", dimensions: 4, cache: NewEmbeddingCache(10)}

	embs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(embs))
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 invocations, got %d", fake.calls)
	}
}

func TestBedrockEmbedder_Dimensions(t *testing.T) {
	e := &BedrockEmbedder{dimensions: 1024}
	if e.Dimensions() != 1024 {
		t.Errorf("Dimensions() = %d, want 1024", e.Dimensions())
	}
}
