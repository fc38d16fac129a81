package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// charsPerSecond is a rough speech-rate heuristic for duration estimates.
const charsPerSecond = 12.0

type AudioResult struct {
	AudioBuffer       []byte
	EstimatedDuration int
	Size              int
}

type Speaker interface {
	TextToSpeech(ctx context.Context, voiceID, text string) ([]byte, error)
}

type AudioSynthesizer struct {
	TTS          Speaker
	DefaultVoice string
	Logger       *zap.Logger
}

// EstimateDuration returns round(chars/12) seconds.
func EstimateDuration(script string) int {
	return int(math.Round(float64(utf8.RuneCountInString(script)) / charsPerSecond))
}

func (a *AudioSynthesizer) SynthesizeAudio(ctx context.Context, script, voiceID string) (*AudioResult, error) {
	if a == nil || a.TTS == nil {
		return nil, fmt.Errorf("audio synthesizer not configured")
	}
	voice := strings.TrimSpace(voiceID)
	if voice == "" {
		voice = a.DefaultVoice
	}
	audio, err := a.TTS.TextToSpeech(ctx, voice, script)
	if err != nil {
		return nil, err
	}
	result := &AudioResult{
		AudioBuffer:       audio,
		EstimatedDuration: EstimateDuration(script),
		Size:              len(audio),
	}
	if a.Logger != nil {
		a.Logger.Info("audio synthesized",
			zap.String("voice", voice),
			zap.String("size", humanize.Bytes(uint64(result.Size))),
			zap.Int("estimated_seconds", result.EstimatedDuration),
		)
	}
	return result, nil
}
