package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/stevegt/taxbot/client"
)

// DefaultEndpoint is the base URL of the Generative Language API.
const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// Client encapsulates the API client for Google's Gemini models.
// This client implements the ChatClient interface (as defined in the
// client package) for generating chat completions.
type Client struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient creates a new instance of the Gemini chat client.
// It loads the GEMINI_API_KEY from the environment.
func NewClient() *Client {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Warning: GEMINI_API_KEY environment variable not set")
	}
	return &Client{
		APIKey:     key,
		Endpoint:   DefaultEndpoint,
		HTTPClient: &http.Client{},
	}
}

// Part is one piece of message content.  We only send and read text.
type Part struct {
	Text string `json:"text"`
}

// Content is a single turn in the conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Request defines the generateContent payload.
type Request struct {
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
	Contents          []Content `json:"contents"`
}

// Candidate holds one generated reply.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// Usage reports token counts for a request.
type Usage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Response defines Gemini's generateContent response structure.
type Response struct {
	Candidates    []Candidate `json:"candidates"`
	UsageMetadata *Usage      `json:"usageMetadata,omitempty"`
	Error         *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// role converts a client role into a Gemini role.  Gemini only knows
// "user" and "model".
func role(r string) string {
	if r == client.RoleAI {
		return "model"
	}
	return "user"
}

// CompleteChat sends a generateContent request to Gemini and returns
// the generated text.  This method conforms to the ChatClient
// interface.
func (c *Client) CompleteChat(ctx context.Context, model, sysmsg string, messages []client.ChatMsg) (string, error) {
	reqPayload := Request{}
	if sysmsg != "" {
		reqPayload.SystemInstruction = &Content{Parts: []Part{{Text: sysmsg}}}
	}
	for _, m := range messages {
		reqPayload.Contents = append(reqPayload.Contents, Content{
			Role:  role(m.Role),
			Parts: []Part{{Text: m.Content}},
		})
	}
	if len(reqPayload.Contents) == 0 {
		return "", fmt.Errorf("no messages to send to Gemini")
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.Endpoint, "/"), model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.APIKey)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var response Response
	jsonErr := json.Unmarshal(respBytes, &response)

	if resp.StatusCode != http.StatusOK {
		if jsonErr == nil && response.Error != nil {
			return "", fmt.Errorf("Gemini API returned status %d: %s: %s", resp.StatusCode, response.Error.Status, response.Error.Message)
		}
		return "", fmt.Errorf("Gemini API returned status %d: %s", resp.StatusCode, string(respBytes))
	}
	if jsonErr != nil {
		return "", jsonErr
	}
	if response.Error != nil {
		return "", fmt.Errorf("Gemini API error %d: %s", response.Error.Code, response.Error.Message)
	}
	if len(response.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in Gemini response")
	}

	var out strings.Builder
	for _, p := range response.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	return out.String(), nil
}

// Assert that Client implements client.ChatClient.
var _ client.ChatClient = (*Client)(nil)
