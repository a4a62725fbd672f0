package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/stevegt/taxbot/client"
)

// DefaultEndpoint is Perplexity's chat completions URL.
const DefaultEndpoint = "https://api.perplexity.ai/chat/completions"

// Client encapsulates the API client for Perplexity.ai.
// This client implements the ChatClient interface (as defined in the client package)
// for generating chat completions.
type Client struct {
	APIKey   string
	Endpoint string
}

// NewClient creates a new instance of the Perplexity chat client.
// It loads the PERPLEXITY_API_KEY from the environment.
func NewClient() *Client {
	key := os.Getenv("PERPLEXITY_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Warning: PERPLEXITY_API_KEY environment variable not set")
	}
	return &Client{
		APIKey:   key,
		Endpoint: DefaultEndpoint,
	}
}

// Request defines the payload sent to Perplexity.ai.
type Request struct {
	Model    string    `json:"model"`
	Messages []ChatMsg `json:"messages"`
}

// ChatMsg represents a single chat message.
type ChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response defines Perplexity.ai's response structure.
type Response struct {
	Citations []string `json:"citations"`
	Choices   []Choice `json:"choices"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Choice holds a generated chat choice.
type Choice struct {
	FinishReason string  `json:"finish_reason"`
	Message      ChatMsg `json:"message"`
}

// role converts a client role into Perplexity's lowercase role names.
func role(r string) string {
	if r == client.RoleAI {
		return "assistant"
	}
	return "user"
}

// CompleteChat sends a chat completion request to Perplexity.ai and returns the generated text.
// This method conforms to the ChatClient interface.
func (c *Client) CompleteChat(ctx context.Context, model, sysmsg string, messages []client.ChatMsg) (string, error) {
	// Prepare the request payload.
	reqPayload := Request{
		Model: model,
		Messages: []ChatMsg{
			{
				Role:    "system",
				Content: sysmsg,
			},
		},
	}
	for _, m := range messages {
		reqPayload.Messages = append(reqPayload.Messages, ChatMsg{
			Role:    role(m.Role),
			Content: m.Content,
		})
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Check for non-200 status codes.
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Perplexity API returned status %d: %s", resp.StatusCode, string(body))
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var response Response
	if err := json.Unmarshal(respBytes, &response); err != nil {
		return "", err
	}
	if response.Error != nil {
		return "", fmt.Errorf("Perplexity API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in Perplexity response")
	}

	return response.Choices[0].Message.Content, nil
}

// Assert that Client implements client.ChatClient.
var _ client.ChatClient = (*Client)(nil)
