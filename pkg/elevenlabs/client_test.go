package elevenlabs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   "mp3-bytes",
		},
		{
			name:    "auth_error",
			status:  http.StatusUnauthorized,
			body:    `{"detail": "invalid api key"}`,
			wantErr: "unexpected status 401",
		},
		{
			name:    "empty_audio",
			status:  http.StatusOK,
			body:    "",
			wantErr: "empty audio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("xi-api-key"))

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL), WithVoice("voice-1"))

			audio, err := client.Synthesize(context.Background(), "Hello, how was your experience?")

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []byte("mp3-bytes"), audio)
		})
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.Synthesize(context.Background(), "")
	require.Error(t, err)
}
