package core

import (
	"fmt"
	"sort"

	gptLib "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"
)

// DefaultModel is the model used when none is named.
var DefaultModel = "gemini-1.5-flash"

// Model is a type for model name and characteristics
type Model struct {
	Name         string
	TokenLimit   int
	providerName string
	upstreamName string
	active       bool
}

func (m *Model) String() string {
	status := ""
	if m.active {
		status = "*"
	}
	return fmt.Sprintf("%1s %-20s %-12s tokens: %d", status, m.Name, m.providerName, m.TokenLimit)
}

// Provider returns the name of the provider that serves the model.
func (m *Model) Provider() string {
	return m.providerName
}

// Models is a type that manages the set of available models.
type Models struct {
	// The list of available models.
	Available map[string]*Model
}

// NewModels creates a new Models object.
func NewModels() (models *Models) {
	models = &Models{}
	models.Available = make(map[string]*Model)
	add := func(name string, tokenLimit int, providerName string, upstreamName string) {
		m := &Model{
			Name:         name,
			TokenLimit:   tokenLimit,
			providerName: providerName,
			upstreamName: upstreamName,
		}
		models.Available[name] = m
	}

	add("gemini-1.5-flash", 1048576, "gemini", "gemini-1.5-flash")
	add("gemini-1.5-pro", 2097152, "gemini", "gemini-1.5-pro")
	add("gemini-2.0-flash", 1048576, "gemini", "gemini-2.0-flash")

	add("gpt-3.5-turbo", 16385, "openai", gptLib.GPT3Dot5Turbo)
	add("gpt-4o", 128000, "openai", gptLib.GPT4o)
	add("gpt-4o-mini", 128000, "openai", "gpt-4o-mini")

	// XXX perplexity input token limits are not published?
	add("sonar", 128000, "perplexity", "sonar")
	add("sonar-pro", 200000, "perplexity", "sonar-pro")

	return
}

// FindModel returns the model name and object given a model name.
// if the given model name is empty, then use DefaultModel.
func (models *Models) FindModel(model string) (name string, m *Model, err error) {
	if model == "" {
		model = DefaultModel
	}
	m, ok := models.Available[model]
	if !ok {
		err = fmt.Errorf("model %q not found", model)
		return
	}
	name = model
	return
}

// ListModels returns a list of available models sorted by provider
// name and model name.
func (models *Models) ListModels() (list []*Model) {
	for _, m := range models.Available {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].providerName == list[j].providerName {
			return list[i].Name < list[j].Name
		}
		return list[i].providerName < list[j].providerName
	})
	return
}

// activate marks name as the active model and returns it.
func (models *Models) activate(name string) (m *Model, err error) {
	defer Return(&err)
	_, m, err = models.FindModel(name)
	Ck(err)
	for _, other := range models.Available {
		other.active = false
	}
	m.active = true
	return
}
