package publisher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/pkg/models"
)

// payload is the outbound thumbnail notification body
type payload struct {
	Event     string         `json:"event"`
	ClipID    string         `json:"clip_id"`
	Variant   models.Variant `json:"variant"`
	ImagePath string         `json:"image_path"`
	Timestamp int64          `json:"timestamp"`
}

// Webhook notifies an external publishing service that a thumbnail
// should go live. Requests carry an HMAC-SHA256 signature so the
// receiver can verify the sender.
type Webhook struct {
	url    string
	secret string
	client *http.Client
	logger *logging.Logger
}

// NewWebhook creates a webhook publisher
func NewWebhook(cfg config.PublisherConfig, logger *logging.Logger) *Webhook {
	return &Webhook{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// SetThumbnail posts the thumbnail-change notification
func (w *Webhook) SetThumbnail(ctx context.Context, clipID string, variant models.Variant, imagePath string) error {
	body, err := json.Marshal(payload{
		Event:     "thumbnail.set",
		ClipID:    clipID,
		Variant:   variant,
		ImagePath: imagePath,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Clipforge-Signature", w.sign(body))

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("publisher returned status %d", resp.StatusCode)
	}

	if w.logger != nil {
		w.logger.WithClipID(clipID).WithField("variant", variant).Debug("Thumbnail published")
	}
	return nil
}

func (w *Webhook) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(w.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Nop discards notifications; used when no publisher is configured
type Nop struct{}

// SetThumbnail does nothing
func (Nop) SetThumbnail(context.Context, string, models.Variant, string) error {
	return nil
}
