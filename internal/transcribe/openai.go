package transcribe

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend transcribes through the OpenAI audio API, requesting
// verbose JSON so segment timestamps survive.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds the hosted backend with the whisper-1 model.
func NewOpenAIBackend(apiKey string) *OpenAIBackend {
	return &OpenAIBackend{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
	}
}

// Transcribe uploads the audio file and replays returned segments.
func (b *OpenAIBackend) Transcribe(ctx context.Context, audioPath string, onSegment SegmentFn) (Transcript, error) {
	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    b.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcript{}, err
	}

	transcript := Transcript{
		Language:    resp.Language,
		DurationSec: resp.Duration,
	}
	for _, seg := range resp.Segments {
		out := Segment{
			StartSec: seg.Start,
			EndSec:   seg.End,
			Text:     strings.TrimSpace(seg.Text),
		}
		transcript.Segments = append(transcript.Segments, out)
		if onSegment != nil {
			onSegment(out, resp.Duration)
		}
	}
	if len(transcript.Segments) == 0 && resp.Text != "" {
		// Some models return plain text only; keep it as a single segment.
		out := Segment{EndSec: resp.Duration, Text: strings.TrimSpace(resp.Text)}
		transcript.Segments = append(transcript.Segments, out)
		if onSegment != nil {
			onSegment(out, resp.Duration)
		}
	}
	return transcript, nil
}
