package openai

import (
	"context"
	"fmt"

	gptLib "github.com/sashabaranov/go-openai"
	"github.com/stevegt/taxbot/client"
)

// Client implements the ChatClient interface for OpenAI.
type Client struct {
	client *gptLib.Client
}

// NewClient creates a new Client using the public OpenAI endpoint.
func NewClient(apiKey string) *Client {
	return &Client{client: gptLib.NewClient(apiKey)}
}

// NewClientWithBaseURL creates a new Client that talks to an
// OpenAI-compatible endpoint at baseURL.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	config := gptLib.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return &Client{client: gptLib.NewClientWithConfig(config)}
}

// CompleteChat sends a chat request to the OpenAI API and returns the response.
// It converts client.ChatMsg messages into OpenAI's ChatCompletionMessage format.
func (oc *Client) CompleteChat(ctx context.Context, model, sysmsg string, messages []client.ChatMsg) (string, error) {
	omsgs := []gptLib.ChatCompletionMessage{
		{
			Role:    gptLib.ChatMessageRoleSystem,
			Content: sysmsg,
		},
	}
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case client.RoleUser:
			role = gptLib.ChatMessageRoleUser
		case client.RoleAI:
			role = gptLib.ChatMessageRoleAssistant
		default:
			role = gptLib.ChatMessageRoleUser
		}
		omsgs = append(omsgs, gptLib.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	req := gptLib.ChatCompletionRequest{
		Model:    model,
		Messages: omsgs,
	}
	resp, err := oc.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Assert that Client implements client.ChatClient.
var _ client.ChatClient = (*Client)(nil)
