package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/stevegt/taxbot/citation"
	"github.com/stevegt/taxbot/client"
)

// WelcomeID is the ID of the greeting that opens every conversation.
const WelcomeID = "welcome"

// WelcomeText is the greeting shown at the top of every conversation.
var WelcomeText = "Hello, I'm TaxBot, your tax assistant. How can I help you with your tax questions today?"

// Disclaimer is shown alongside answers.
var Disclaimer = "TaxBot provides tax information but should not be considered formal tax advice."

// Role is the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a conversation.
type Message struct {
	ID        string              `json:"id"`
	Role      Role                `json:"role"`
	Content   string              `json:"content"`
	Timestamp time.Time           `json:"timestamp"`
	Sources   []citation.Citation `json:"sources,omitempty"`
	// IsLoading marks an assistant placeholder whose reply hasn't
	// arrived yet.
	IsLoading bool `json:"isLoading,omitempty"`
}

// Conversation is the in-memory message list for one chat session.
// It is never persisted.  It is meant for a single consumer and is
// not safe for concurrent mutation.
type Conversation struct {
	msgs []*Message
	busy bool
}

// NewConversation returns a conversation holding only the welcome
// message.
func NewConversation() *Conversation {
	c := &Conversation{}
	c.Clear()
	return c
}

func welcome() *Message {
	return &Message{
		ID:        WelcomeID,
		Role:      RoleAssistant,
		Content:   WelcomeText,
		Timestamp: time.Now(),
		Sources:   []citation.Citation{},
	}
}

// Clear drops everything but a fresh welcome message.
func (c *Conversation) Clear() {
	c.msgs = []*Message{welcome()}
	c.busy = false
}

// Busy returns true while a reply is pending.
func (c *Conversation) Busy() bool {
	return c.busy
}

// Messages returns a copy of the message list.
func (c *Conversation) Messages() (msgs []*Message) {
	msgs = make([]*Message, len(c.msgs))
	copy(msgs, c.msgs)
	return
}

// Len returns the number of messages, including the welcome message.
func (c *Conversation) Len() int {
	return len(c.msgs)
}

// AddUserMessage appends a user message and returns it.
func (c *Conversation) AddUserMessage(content string) *Message {
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	c.msgs = append(c.msgs, msg)
	return msg
}

// AddAssistantPlaceholder appends an empty, loading assistant message
// and returns it.  UpdateAssistantMessage fills it in later.
func (c *Conversation) AddAssistantPlaceholder() *Message {
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		IsLoading: true,
	}
	c.msgs = append(c.msgs, msg)
	return msg
}

// UpdateAssistantMessage sets the content and sources of the message
// with the given id and clears its loading flag.  It returns nil if
// no such message exists.
func (c *Conversation) UpdateAssistantMessage(id, content string, sources []citation.Citation) *Message {
	for _, msg := range c.msgs {
		if msg.ID != id {
			continue
		}
		msg.Content = content
		msg.Sources = sources
		msg.IsLoading = false
		return msg
	}
	return nil
}

// RemoveLoading drops all placeholders that are still loading.
func (c *Conversation) RemoveLoading() {
	kept := c.msgs[:0]
	for _, msg := range c.msgs {
		if !msg.IsLoading {
			kept = append(kept, msg)
		}
	}
	// don't leave stale pointers in the tail of the backing array
	for i := len(kept); i < len(c.msgs); i++ {
		c.msgs[i] = nil
	}
	c.msgs = kept
}

// History returns the settled messages in provider form, skipping
// the welcome message and any loading placeholders.
func (c *Conversation) History() (msgs []client.ChatMsg) {
	for _, msg := range c.msgs {
		if msg.IsLoading || msg.ID == WelcomeID {
			continue
		}
		role := client.RoleUser
		if msg.Role == RoleAssistant {
			role = client.RoleAI
		}
		msgs = append(msgs, client.ChatMsg{Role: role, Content: msg.Content})
	}
	return
}

// lastUserMessage returns the most recent user message, or nil.
func (c *Conversation) lastUserMessage() *Message {
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Role == RoleUser {
			return c.msgs[i]
		}
	}
	return nil
}
