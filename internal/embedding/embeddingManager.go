package embedding

import "context"

type Embedder interface {
	BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error)
}
