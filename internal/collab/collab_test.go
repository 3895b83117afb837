package collab

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge/internal/reframe"
)

func TestParseWhisperOutput(t *testing.T) {
	data := []byte(`{
		"result": {"language": "en"},
		"transcription": [
			{"text": " hello", "offsets": {"from": 0, "to": 400}},
			{"text": " world", "offsets": {"from": 450, "to": 900}},
			{"text": "  ", "offsets": {"from": 900, "to": 900}}
		]
	}`)

	got, err := parseWhisperOutput(data)
	require.NoError(t, err)

	assert.Equal(t, "en", got.Language)
	assert.Equal(t, "hello world", got.Text)
	require.Len(t, got.Words, 2, "blank entries are dropped")
	assert.Equal(t, " hello", got.Words[0].Text)
	assert.InDelta(t, 0.0, got.Words[0].Start, 1e-9)
	assert.InDelta(t, 0.4, got.Words[0].End, 1e-9)
	assert.InDelta(t, 0.45, got.Words[1].Start, 1e-9)
}

func TestParseWhisperOutputInvalid(t *testing.T) {
	_, err := parseWhisperOutput([]byte("not json"))
	assert.Error(t, err)
}

func TestHTTPEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	}))
	defer server.Close()

	e := NewHTTPEmbedder(server.URL)
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestHTTPEmbedderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	e := NewHTTPEmbedder(server.URL)
	_, err := e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestHTTPDetector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"boxes": [{"x": 10, "y": 20, "w": 30, "h": 40}]}`))
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL)
	boxes, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 64)))
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, 10.0, boxes[0].X)
	assert.Equal(t, 40.0, boxes[0].H)
}

func TestHTTPTrackerSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/init":
			w.Write([]byte(`{"session": "s1"}`))
		case "/update":
			w.Write([]byte(`{"ok": true, "box": {"x": 5, "y": 5, "w": 10, "h": 10}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	tr := NewHTTPTrackerFactory(server.URL)()
	frame := image.NewRGBA(image.Rect(0, 0, 64, 64))

	require.NoError(t, tr.Init(context.Background(), frame, reframe.Box{X: 1, Y: 2, W: 3, H: 4}))

	box, ok, err := tr.Update(context.Background(), frame)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5.0, box.X)
}
