// Package mixdown sums the converted vocals with the instrumental stem.
package mixdown

import (
	"context"

	"songdub/internal/audio"
	"songdub/internal/services"
)

// Service mixes two stems through ffmpeg's amix filter.
type Service struct {
	transcoder *audio.Transcoder
}

// New wraps a transcoder.
func New(transcoder *audio.Transcoder) *Service {
	return &Service{transcoder: transcoder}
}

// Mix writes vocals + instrumental to out, keeping the longer of the two.
func (s *Service) Mix(ctx context.Context, vocals, instrumental, out string) error {
	if err := s.transcoder.Mix(ctx, vocals, instrumental, out); err != nil {
		return services.Wrap(services.ErrExternalTool, "mixing", "mix", "mixdown failed", err)
	}
	return nil
}
