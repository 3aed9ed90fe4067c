// ABOUTME: Narration synthesis handles: the Synthesizer interface and the OpenAI TTS implementation.
// ABOUTME: Audio is streamed to a caller-chosen path; the authoritative duration comes from ffprobe, not the request.

package speech

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/2389-research/chalktalk/media"
)

// Synthesizer converts narration text into an audio file on disk and reports
// the measured duration in seconds. Implementations must write to exactly the
// requested path so per-segment placement stays deterministic, and must
// overwrite idempotently on re-execution.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) (durationSec float64, err error)
}

// defaultVoiceInstructions shape the narrator's delivery for educational content.
const defaultVoiceInstructions = `Voice Affect: Calm, composed, and engaging; project quiet authority.
Tone: Warm and curious, like a patient teacher walking through an idea.
Pacing: Steady and moderate; unhurried, with brief pauses after key statements.
Pronunciation: Clear and precise, emphasizing mathematical terms.`

// OpenAISynthesizer implements Synthesizer over the OpenAI speech API.
type OpenAISynthesizer struct {
	client       openai.Client
	model        openai.SpeechModel
	voice        openai.AudioSpeechNewParamsVoice
	instructions string
}

// NewOpenAISynthesizer creates a synthesizer with the given key. Empty model
// or voice fall back to gpt-4o-mini-tts / sage.
func NewOpenAISynthesizer(apiKey, model, voice string) *OpenAISynthesizer {
	s := &OpenAISynthesizer{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		model:        openai.SpeechModelGPT4oMiniTTS,
		voice:        openai.AudioSpeechNewParamsVoiceSage,
		instructions: defaultVoiceInstructions,
	}
	if model != "" {
		s.model = openai.SpeechModel(model)
	}
	if voice != "" {
		s.voice = openai.AudioSpeechNewParamsVoice(voice)
	}
	return s
}

// Synthesize streams TTS audio to outPath and measures the produced duration.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, outPath string) (float64, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("create audio dir: %w", err)
	}

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          s.model,
		Voice:          s.voice,
		Input:          text,
		Instructions:   openai.String(s.instructions),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return 0, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	f, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return 0, fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close audio file: %w", err)
	}

	dur, err := media.ProbeDuration(outPath)
	if err != nil {
		return 0, fmt.Errorf("measure audio duration: %w", err)
	}
	return dur, nil
}
