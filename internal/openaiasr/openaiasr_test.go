package openaiasr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/cyberscribe/internal/engine"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("CYBERSCRIBE_TEST_KEY", "")

	_, err := New(Config{APIKeyEnv: "CYBERSCRIBE_TEST_KEY"}, nil)
	require.EqualError(t, err, "CYBERSCRIBE_TEST_KEY is not set")
}

func TestTranscribeUploadsClip(t *testing.T) {
	type seen struct {
		path     string
		auth     string
		model    string
		language string
	}
	got := make(chan seen, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		got <- seen{
			path:     r.URL.Path,
			auth:     r.Header.Get("Authorization"),
			model:    r.FormValue("model"),
			language: r.FormValue("language"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " Bonjour. "})
	}))
	t.Cleanup(server.Close)

	t.Setenv("CYBERSCRIBE_TEST_KEY", "sk-test")
	model, err := New(Config{Model: "whisper-1", BaseURL: server.URL + "/v1/", APIKeyEnv: "CYBERSCRIBE_TEST_KEY"}, nil)
	require.NoError(t, err)

	clip := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(clip, []byte("RIFF"), 0o600))

	segments, err := model.Transcribe(context.Background(), clip, engine.Options{Language: "fr"})
	require.NoError(t, err)
	require.Equal(t, []engine.Segment{{Text: " Bonjour. "}}, segments)

	request := <-got
	require.Equal(t, "/v1/audio/transcriptions", request.path)
	require.Equal(t, "Bearer sk-test", request.auth)
	require.Equal(t, "whisper-1", request.model)
	require.Equal(t, "fr", request.language)
}

func TestTranscribeMissingClip(t *testing.T) {
	t.Setenv("CYBERSCRIBE_TEST_KEY", "sk-test")
	model, err := New(Config{APIKeyEnv: "CYBERSCRIBE_TEST_KEY"}, nil)
	require.NoError(t, err)

	_, err = model.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), engine.Options{})
	require.Error(t, err)
}
