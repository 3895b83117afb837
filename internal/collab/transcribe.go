package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"clipforge/pkg/models"
)

// TranscriptResult is the output of a speech-to-text run
type TranscriptResult struct {
	Text     string
	Language string
	Words    []models.Word
}

// WhisperCLI transcribes media by shelling out to a whisper.cpp
// command-line binary with JSON output enabled.
type WhisperCLI struct {
	bin     string
	model   string
	tempDir string
}

// NewWhisperCLI creates a transcriber
func NewWhisperCLI(bin, model, tempDir string) *WhisperCLI {
	return &WhisperCLI{bin: bin, model: model, tempDir: tempDir}
}

// whisperOutput mirrors the whisper.cpp JSON file layout
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
	} `json:"transcription"`
}

// Transcribe runs the model over a media file and returns the full
// text plus per-word timestamps.
func (w *WhisperCLI) Transcribe(ctx context.Context, mediaPath string) (*TranscriptResult, error) {
	if err := os.MkdirAll(w.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	outPrefix := filepath.Join(w.tempDir, "whisper_"+uuid.NewString())
	outPath := outPrefix + ".json"
	defer os.Remove(outPath)

	args := []string{
		"-f", mediaPath,
		"-oj",
		"-of", outPrefix,
		"-ml", "1",
	}
	if w.model != "" {
		args = append([]string{"-m", w.model}, args...)
	}

	cmd := exec.CommandContext(ctx, w.bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w, stderr: %s", err, stderr.String())
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	return parseWhisperOutput(data)
}

func parseWhisperOutput(data []byte) (*TranscriptResult, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper output: %w", err)
	}

	result := &TranscriptResult{Language: out.Result.Language}

	var text strings.Builder
	for _, entry := range out.Transcription {
		if strings.TrimSpace(entry.Text) == "" {
			continue
		}
		text.WriteString(entry.Text)
		result.Words = append(result.Words, models.Word{
			Text:  entry.Text,
			Start: float64(entry.Offsets.From) / 1000.0,
			End:   float64(entry.Offsets.To) / 1000.0,
		})
	}
	result.Text = strings.TrimSpace(text.String())

	return result, nil
}
