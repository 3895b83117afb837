package collab

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// YTDLP downloads source videos through the yt-dlp binary
type YTDLP struct {
	bin string
}

// NewYTDLP creates a downloader
func NewYTDLP(bin string) *YTDLP {
	return &YTDLP{bin: bin}
}

// Download fetches a source URL into destDir and returns the local
// file path.
func (y *YTDLP) Download(ctx context.Context, sourceURL, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dest dir: %w", err)
	}

	outPath := filepath.Join(destDir, uuid.NewString()+".mp4")
	args := []string{
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"-o", outPath,
		sourceURL,
	}

	cmd := exec.CommandContext(ctx, y.bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("download failed: %w, stderr: %s", err, stderr.String())
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("download produced no file: %w", err)
	}

	return outPath, nil
}
