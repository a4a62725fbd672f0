package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stevegt/taxbot/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return &Client{APIKey: "test-key", Endpoint: url, HTTPClient: http.DefaultClient}
}

func TestCompleteChat(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "The deadline "}, {"text": "is April 15."}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 5, "totalTokenCount": 15}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	msgs := []client.ChatMsg{
		{Role: client.RoleUser, Content: "When are taxes due?"},
		{Role: client.RoleAI, Content: "Usually in April."},
		{Role: client.RoleUser, Content: "Exactly when?"},
	}
	out, err := c.CompleteChat(context.Background(), "gemini-1.5-flash", "You are TaxBot.", msgs)
	require.NoError(t, err)
	assert.Equal(t, "The deadline is April 15.", out)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "You are TaxBot.", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "user", got.Contents[2].Role)
	assert.Equal(t, "Exactly when?", got.Contents[2].Parts[0].Text)
}

func TestCompleteChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "api error",
			status:  http.StatusBadRequest,
			body:    `{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`,
			wantErr: "API key not valid",
		},
		{
			name:    "non-json error",
			status:  http.StatusBadGateway,
			body:    `upstream unavailable`,
			wantErr: "status 502",
		},
		{
			name:    "no candidates",
			status:  http.StatusOK,
			body:    `{"candidates": []}`,
			wantErr: "no candidates",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			_, err := c.CompleteChat(context.Background(), "gemini-1.5-flash", "", []client.ChatMsg{{Role: client.RoleUser, Content: "hi"}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompleteChatNoMessages(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	_, err := c.CompleteChat(context.Background(), "gemini-1.5-flash", "sys", nil)
	assert.Error(t, err)
}
