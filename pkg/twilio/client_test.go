package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCall(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		wantSID string
	}{
		{
			name:    "success",
			status:  http.StatusCreated,
			body:    `{"sid": "CA123", "status": "queued", "to": "+15551234567", "from": "+15550000000"}`,
			wantSID: "CA123",
		},
		{
			name:    "auth_error",
			status:  http.StatusUnauthorized,
			body:    `{"code": 20003, "message": "Authenticate"}`,
			wantErr: "unexpected status 401",
		},
		{
			name:    "missing_sid",
			status:  http.StatusCreated,
			body:    `{"status": "queued"}`,
			wantErr: "missing call sid",
		},
		{
			name:    "malformed_response",
			status:  http.StatusCreated,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/2010-04-01/Accounts/AC-test/Calls.json", r.URL.Path)

				user, pass, ok := r.BasicAuth()
				require.True(t, ok)
				assert.Equal(t, "AC-test", user)
				assert.Equal(t, "token", pass)

				require.NoError(t, r.ParseForm())
				assert.Equal(t, "+15551234567", r.PostFormValue("To"))
				assert.Equal(t, "+15550000000", r.PostFormValue("From"))
				assert.Equal(t, "https://app.example.com/api/twilio/voice/cust-1", r.PostFormValue("Url"))

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("AC-test", "token", WithBaseURL(srv.URL))

			call, err := client.CreateCall(context.Background(), CreateCallRequest{
				To:              "+15551234567",
				From:            "+15550000000",
				InstructionsURL: "https://app.example.com/api/twilio/voice/cust-1",
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, call)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantSID, call.SID)
		})
	}
}

func TestCreateCallValidation(t *testing.T) {
	client := NewClient("AC-test", "token")
	_, err := client.CreateCall(context.Background(), CreateCallRequest{To: "+15551234567"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestParseRecordingCallback(t *testing.T) {
	newCallbackRequest := func(form url.Values) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/twilio/recording", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	t.Run("full", func(t *testing.T) {
		cb, err := ParseRecordingCallback(newCallbackRequest(url.Values{
			"CallSid":      {"CA123"},
			"RecordingUrl": {"https://api.twilio.com/recordings/RE1"},
		}))
		require.NoError(t, err)
		assert.Equal(t, "CA123", cb.CallSID)
		assert.Equal(t, "https://api.twilio.com/recordings/RE1", cb.RecordingURL)
	})

	t.Run("no recording", func(t *testing.T) {
		cb, err := ParseRecordingCallback(newCallbackRequest(url.Values{"CallSid": {"CA123"}}))
		require.NoError(t, err)
		assert.Empty(t, cb.RecordingURL)
	})

	t.Run("missing call sid", func(t *testing.T) {
		_, err := ParseRecordingCallback(newCallbackRequest(url.Values{
			"RecordingUrl": {"https://api.twilio.com/recordings/RE1"},
		}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CallSid")
	})
}
