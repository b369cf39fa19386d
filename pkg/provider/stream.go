package provider

import (
	"io"

	"github.com/ainqa-health/aigateway/pkg/model"
)

// GenerationStream is an established streaming generation. Establishment
// failures (and their retry budget) are handled by the client's Stream
// method; anything that goes wrong during Consume is a mid-stream failure
// and belongs to the caller, never to the fallback orchestrator.
type GenerationStream struct {
	body    io.ReadCloser
	consume func(onChunk model.ChunkHandler) error
}

func newGenerationStream(body io.ReadCloser, consume func(onChunk model.ChunkHandler) error) *GenerationStream {
	return &GenerationStream{body: body, consume: consume}
}

// Consume reads the stream to completion, delivering chunks in order. The
// terminal chunk has Done set and carries the usage summary when the
// provider reported one. The stream is closed on return.
func (s *GenerationStream) Consume(onChunk model.ChunkHandler) error {
	defer s.body.Close()
	return s.consume(onChunk)
}

// Close abandons the stream without consuming it.
func (s *GenerationStream) Close() error {
	return s.body.Close()
}
