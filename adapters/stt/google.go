package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/relaypoint/console/domain/repositories"
)

// GoogleTranscriber implements the cloud Transcriber on Google Cloud
// Speech-to-Text, batch recognition over a buffered recording.
type GoogleTranscriber struct{}

// NewGoogleTranscriber creates the Google Cloud transcriber. Credentials are
// resolved through the standard application-default chain.
func NewGoogleTranscriber() *GoogleTranscriber {
	return &GoogleTranscriber{}
}

// Available probes whether the provider is usable before a recording starts,
// so a missing configuration is discovered up front rather than after the
// operator has already spoken.
func (g *GoogleTranscriber) Available(ctx context.Context) bool {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return false
	}
	client.Close()
	return true
}

// Transcribe converts a buffered recording to text.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, audio []byte, config repositories.AudioConfig) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create speech client: %w", wrapAuth(err))
	}
	defer client.Close()

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return "", err
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(config.SampleRate),
			LanguageCode:    config.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognition failed: %w", wrapAuth(err))
	}

	var transcript string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			if transcript != "" {
				transcript += " "
			}
			transcript += result.Alternatives[0].Transcript
		}
	}

	if transcript == "" {
		return "", fmt.Errorf("no speech detected in audio")
	}
	return transcript, nil
}

// wrapAuth tags provider credential rejections so callers can distinguish
// them from recoverable transport failures.
func wrapAuth(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %v", repositories.ErrUnauthorized, err)
	}
	return err
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
