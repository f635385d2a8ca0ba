package transcribe

import (
	"context"
	"sync"
)

// Service wraps a Backend with once-only lazy construction and serialized
// invocation. The underlying engine is expensive to build and not assumed
// re-entrant, so concurrent jobs share one instance and take turns.
type Service struct {
	build func() (Backend, error)

	once    sync.Once
	backend Backend
	err     error

	mu sync.Mutex
}

// NewService defers backend construction until the first transcription.
func NewService(build func() (Backend, error)) *Service {
	return &Service{build: build}
}

// Transcribe builds the backend on first use and forwards the call.
// Calls from concurrent jobs are serialized.
func (s *Service) Transcribe(ctx context.Context, audioPath string, onSegment SegmentFn) (Transcript, error) {
	s.once.Do(func() {
		s.backend, s.err = s.build()
	})
	if s.err != nil {
		return Transcript{}, s.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Transcribe(ctx, audioPath, onSegment)
}
