package collab

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"clipforge/internal/reframe"
)

// HTTPTracker follows a seeded box via an external tracking service.
// Each tracker owns one server-side session; a fresh tracker is
// created per tracked run.
type HTTPTracker struct {
	url     string
	client  *http.Client
	session string
}

// NewHTTPTrackerFactory returns a factory producing one tracker per
// tracked reframe run.
func NewHTTPTrackerFactory(url string) func() reframe.Tracker {
	return func() reframe.Tracker {
		return &HTTPTracker{
			url:    url,
			client: &http.Client{Timeout: 30 * time.Second},
		}
	}
}

func encodeFrame(frame image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (t *HTTPTracker) post(ctx context.Context, action string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url+"/"+action, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("tracker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tracker returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode tracker response: %w", err)
	}
	return nil
}

// Init seeds the tracker with a detection box
func (t *HTTPTracker) Init(ctx context.Context, frame image.Image, seed reframe.Box) error {
	encoded, err := encodeFrame(frame)
	if err != nil {
		return err
	}

	var out struct {
		Session string `json:"session"`
	}
	err = t.post(ctx, "init", map[string]interface{}{
		"frame": encoded,
		"box":   seed,
	}, &out)
	if err != nil {
		return err
	}

	t.session = out.Session
	return nil
}

// Update advances the tracker one frame. ok=false means the target
// was lost and the caller should re-detect.
func (t *HTTPTracker) Update(ctx context.Context, frame image.Image) (reframe.Box, bool, error) {
	encoded, err := encodeFrame(frame)
	if err != nil {
		return reframe.Box{}, false, err
	}

	var out struct {
		OK  bool        `json:"ok"`
		Box reframe.Box `json:"box"`
	}
	err = t.post(ctx, "update", map[string]interface{}{
		"session": t.session,
		"frame":   encoded,
	}, &out)
	if err != nil {
		return reframe.Box{}, false, err
	}

	return out.Box, out.OK, nil
}
