package mock

import (
	"context"

	"github.com/stevegt/taxbot/client"
)

// Client is a mock LLM provider for testing.
// It implements the ChatClient interface and returns pre-configured responses
// based on the model name. Tests can configure responses using SetResponse.
type Client struct {
	Responses map[string]string // model name -> response
	// Err, if set, is returned from every call instead of a response.
	Err error
	// Calls counts CompleteChat invocations.
	Calls int
	// LastModel, LastSysmsg and LastMsgs record the most recent request.
	LastModel  string
	LastSysmsg string
	LastMsgs   []client.ChatMsg
}

// NewClient creates a new mock client.
func NewClient() *Client {
	return &Client{
		Responses: make(map[string]string),
	}
}

// SetResponse sets the response for a given model name.
// This allows tests to configure the mock provider with specific responses.
func (c *Client) SetResponse(model, response string) {
	c.Responses[model] = response
}

// CompleteChat returns a pre-configured response based on the model name.
// If no response has been configured for the given model, it returns a default response.
// This method implements the ChatClient interface.
func (c *Client) CompleteChat(ctx context.Context, model, sysmsg string, msgs []client.ChatMsg) (string, error) {
	c.Calls++
	c.LastModel = model
	c.LastSysmsg = sysmsg
	c.LastMsgs = append([]client.ChatMsg(nil), msgs...)
	if c.Err != nil {
		return "", c.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	response, ok := c.Responses[model]
	if !ok {
		response = "default mock response"
	}
	return response, nil
}

// Assert that Client implements client.ChatClient.
var _ client.ChatClient = (*Client)(nil)
