package embedprovider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// Fake is a deterministic, network-free Provider used in tests and for
// local development without an Ollama server: it hashes the input text into
// a fixed-dimension vector so identical text always yields identical
// embeddings.
type Fake struct {
	Dim int
}

func NewFake(dim int) *Fake {
	if dim <= 0 {
		dim = 8
	}
	return &Fake{Dim: dim}
}

func (f *Fake) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	out := make([]float32, f.Dim)
	for i := 0; i < f.Dim; i++ {
		b := sum[i%len(sum):]
		if len(b) < 4 {
			b = append(append([]byte{}, b...), sum[:4-len(b)]...)
		}
		v := binary.BigEndian.Uint32(b[:4])
		out[i] = float32(v%1000) / 1000.0
	}
	return out, nil
}

func (f *Fake) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
