package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	. "github.com/stevegt/goadapt"
	"github.com/stevegt/taxbot/cache"
	"github.com/stevegt/taxbot/citation"
	"github.com/stevegt/taxbot/client"
	"github.com/stevegt/taxbot/gemini"
	"github.com/stevegt/taxbot/openai"
	"github.com/stevegt/taxbot/perplexity"
	"github.com/stevegt/taxbot/util"
	"github.com/tiktoken-go/tokenizer"
)

// Version is the version of the taxbot code.
const Version = "0.3.0"

// SysMsgTax tells the model who it is and how to format its sources.
// The SOURCES block it asks for is what citation.Parse reads, so the
// two must be changed together.
var SysMsgTax = `You are TaxBot, a helpful tax assistant specialized in providing accurate tax information.
Always provide detailed, accurate tax information.
Include sources for your information in a special format at the end like this:
SOURCES:
[1] Title: Source title
Content: Brief excerpt from source
URL: url (if available)

[2] Title: Another source title
Content: Brief excerpt from another source
URL: another url (if available)

Always give at least 2 sources.
Focus specifically on tax-related queries and provide the most up-to-date information.
Use a professional, friendly tone.`

// FailureNotice is what the user sees when a request fails.  The
// underlying error goes to the debug log.
var FailureNotice = "Sorry, I couldn't process your request. Please try again."

var (
	// ErrBusy is returned by Send while a previous reply is pending.
	ErrBusy = errors.New("still waiting for the previous reply")
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrRequestFailed wraps every failure to get a reply.
	ErrRequestFailed = errors.New("request failed")
)

// XXX get rid of this global
var Tokenizer tokenizer.Codec

// InitTokenizer initializes the tokenizer.
func InitTokenizer() (err error) {
	defer Return(&err)
	if Tokenizer != nil {
		return
	}
	Tokenizer, err = tokenizer.Get(tokenizer.Cl100kBase)
	Ck(err)
	return
}

// TaxBot answers tax questions using one of the models in Models.
type TaxBot struct {
	// Model is the name of the active model.
	Model    string
	ModelObj *Model
	// SysMsg is sent as the system message with every request.
	SysMsg string
	// History sends the whole conversation instead of only the
	// latest question.
	History bool

	models    *Models
	providers map[string]client.ChatClient
	cache     *cache.Cache
}

// New creates a TaxBot using the named model, or DefaultModel if
// model is empty.
func New(model string) (t *TaxBot, err error) {
	defer Return(&err)
	t = &TaxBot{
		SysMsg:    SysMsgTax,
		models:    NewModels(),
		providers: make(map[string]client.ChatClient),
	}
	_, err = t.SetModel(model)
	Ck(err)
	err = InitTokenizer()
	Ck(err)
	return
}

// SetModel switches the active model and returns the previous one.
func (t *TaxBot) SetModel(model string) (oldModel string, err error) {
	defer Return(&err)
	m, err := t.models.activate(model)
	Ck(err)
	oldModel = t.Model
	t.Model = m.Name
	t.ModelObj = m
	return
}

// ListModels returns the available models.
func (t *TaxBot) ListModels() []*Model {
	return t.models.ListModels()
}

// SetProvider overrides the client used for a provider name such as
// "gemini" or "openai".
func (t *TaxBot) SetProvider(name string, c client.ChatClient) {
	t.providers[name] = c
}

// SetCache enables the response cache.  Pass nil to disable it.
func (t *TaxBot) SetCache(c *cache.Cache) {
	t.cache = c
}

// provider returns the client for a provider name, creating it from
// environment credentials on first use.
func (t *TaxBot) provider(name string) (c client.ChatClient, err error) {
	c, ok := t.providers[name]
	if ok {
		return
	}
	switch name {
	case "gemini":
		c = gemini.NewClient()
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			Fpf(os.Stderr, "Warning: OPENAI_API_KEY environment variable not set\n")
		}
		c = openai.NewClient(key)
	case "perplexity":
		c = perplexity.NewClient()
	default:
		err = fmt.Errorf("unknown provider: %s", name)
		return
	}
	t.providers[name] = c
	return
}

// TokenCount returns the number of tokens in a string.
func (t *TaxBot) TokenCount(text string) (count int, err error) {
	defer Return(&err)
	err = InitTokenizer()
	Ck(err)
	_, tokens, err := Tokenizer.Encode(text)
	Ck(err)
	count = len(tokens)
	return
}

// checkTokens returns an error if the system message plus msgs won't
// fit in the active model's context window.
func (t *TaxBot) checkTokens(msgs []client.ChatMsg) (err error) {
	defer Return(&err)
	total, err := t.TokenCount(t.SysMsg)
	Ck(err)
	for _, msg := range msgs {
		tc, err := t.TokenCount(msg.Content)
		Ck(err)
		total += tc
	}
	Debug("prompt tokens: %d limit: %d", total, t.ModelObj.TokenLimit)
	if total > t.ModelObj.TokenLimit {
		err = fmt.Errorf("token count %d exceeds token limit %d for %s", total, t.ModelObj.TokenLimit, t.Model)
	}
	return
}

// Complete sends msgs to the active model and returns the raw
// completion text, consulting the cache first if one is set.
func (t *TaxBot) Complete(ctx context.Context, msgs []client.ChatMsg) (out string, err error) {
	defer Return(&err)
	err = t.checkTokens(msgs)
	Ck(err)

	var key string
	if t.cache != nil {
		key = cache.Key(t.Model, t.SysMsg, msgs)
		var hit bool
		out, hit, err = t.cache.Get(key)
		if err != nil {
			Debug("cache read failed, treating as miss: %v", err)
			err = nil
		} else if hit {
			Debug("cache hit for %s", key)
			return
		}
	}

	c, err := t.provider(t.ModelObj.providerName)
	Ck(err)
	Debug("sending %d messages to %s", len(msgs), t.Model)
	out, err = c.CompleteChat(ctx, t.ModelObj.upstreamName, t.SysMsg, msgs)
	Ck(err, "model %s", t.Model)
	Debug("response from %s: %s", t.Model, util.Preview(out, 200))

	if t.cache != nil {
		err = t.cache.Put(key, out)
		if err != nil {
			Debug("cache write failed: %v", err)
			err = nil
		}
	}
	return
}

// Ask sends a single question and returns the parsed reply.
func (t *TaxBot) Ask(ctx context.Context, question string) (res citation.Response, err error) {
	defer Return(&err)
	question = strings.TrimSpace(question)
	if question == "" {
		err = ErrEmptyMessage
		return
	}
	out, err := t.Complete(ctx, []client.ChatMsg{{Role: client.RoleUser, Content: question}})
	if err != nil {
		Debug("ask: %v", err)
		err = fmt.Errorf("%w: %v", ErrRequestFailed, err)
		return
	}
	res = citation.Parse(out)
	return
}

// Send runs one turn of conv: it records content as a user message,
// adds a loading placeholder, asks the model, and fills the
// placeholder with the parsed answer and its sources.  On failure
// the placeholder is removed, the user message stays, and the
// returned error wraps ErrRequestFailed.
func (t *TaxBot) Send(ctx context.Context, conv *Conversation, content string) (reply *Message, err error) {
	if conv.Busy() {
		err = ErrBusy
		return
	}
	content = strings.TrimSpace(content)
	if content == "" {
		err = ErrEmptyMessage
		return
	}
	conv.busy = true
	defer func() { conv.busy = false }()

	conv.AddUserMessage(content)
	placeholder := conv.AddAssistantPlaceholder()

	var msgs []client.ChatMsg
	if t.History {
		msgs = conv.History()
	} else {
		last := conv.lastUserMessage()
		msgs = []client.ChatMsg{{Role: client.RoleUser, Content: last.Content}}
	}

	out, err := t.Complete(ctx, msgs)
	if err != nil {
		Debug("send: %v", err)
		conv.RemoveLoading()
		err = fmt.Errorf("%w: %v", ErrRequestFailed, err)
		return
	}

	res := citation.Parse(out)
	reply = conv.UpdateAssistantMessage(placeholder.ID, res.Answer, res.Citations)
	return
}
