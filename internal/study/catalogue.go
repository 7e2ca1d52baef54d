package study

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"studyai-backend/internal/llm"
)

//go:embed prompts.yaml
var promptFiles embed.FS

type kindPrompt struct {
	Function    string `yaml:"function"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
	Instruction string `yaml:"instruction"`
}

type catalogue struct {
	MaterialsSystem string                `yaml:"materials_system"`
	Kinds           map[string]kindPrompt `yaml:"kinds"`
	Personas        map[string]string     `yaml:"personas"`
}

var allKinds = []Kind{KindQuiz, KindFlashcards, KindSummary, KindFlowchart, KindPYQAnalysis}

var personaNames = []string{"research", "notes", "pyq", "general"}

func loadCatalogue() (*catalogue, error) {
	data, err := promptFiles.ReadFile("prompts.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts.yaml: %w", err)
	}
	var cat catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts.yaml: %w", err)
	}

	if strings.TrimSpace(cat.MaterialsSystem) == "" {
		return nil, fmt.Errorf("prompts.yaml: materials_system is empty")
	}
	for _, k := range allKinds {
		p, ok := cat.Kinds[string(k)]
		if !ok || p.Function == "" || !strings.Contains(p.Instruction, "{{CONTEXT}}") {
			return nil, fmt.Errorf("prompts.yaml: kind %q is incomplete", k)
		}
	}
	for _, name := range personaNames {
		if !strings.Contains(cat.Personas[name], "{{CONTEXT}}") {
			return nil, fmt.Errorf("prompts.yaml: persona %q is incomplete", name)
		}
	}
	return &cat, nil
}

// Builder turns documents into gateway requests.
type Builder struct {
	cat *catalogue
}

// NewBuilder loads the embedded prompt catalogue.
func NewBuilder() (*Builder, error) {
	cat, err := loadCatalogue()
	if err != nil {
		return nil, err
	}
	return &Builder{cat: cat}, nil
}

// Build returns the structured request for kind. Sources must already be
// filtered to kind.SourceCategory().
func (b *Builder) Build(kind Kind, sources []Source) (llm.Request, error) {
	if len(sources) == 0 {
		return llm.Request{}, &NoDocumentsError{Kind: kind}
	}
	p := b.cat.Kinds[string(kind)]

	var system, prompt string
	switch kind {
	case KindQuiz, KindFlashcards, KindSummary, KindFlowchart:
		system = b.cat.MaterialsSystem
		prompt = fill(p.Instruction, MaterialsContext(sources), "")
	case KindPYQAnalysis:
		block, subjects := PYQContext(sources)
		system = p.System
		prompt = fill(p.Instruction, block, subjects)
	default:
		return llm.Request{}, ErrUnknownKind
	}

	return llm.Request{
		System:   system,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		Tool: &llm.Tool{
			Name:        p.Function,
			Description: p.Description,
			Parameters:  Schema(kind),
		},
	}, nil
}

// Chat returns the streamed chat request for category. Unknown categories use
// the general persona.
func (b *Builder) Chat(category string, sources []Source, messages []llm.Message) (llm.Request, error) {
	if len(sources) == 0 {
		return llm.Request{}, &NoDocumentsError{}
	}
	persona, ok := b.cat.Personas[category]
	if !ok {
		persona = b.cat.Personas["general"]
	}
	return llm.Request{
		System:   fill(persona, ChatContext(sources), ""),
		Messages: messages,
	}, nil
}

func fill(tmpl, block, subjects string) string {
	return strings.NewReplacer("{{CONTEXT}}", block, "{{SUBJECTS}}", subjects).Replace(tmpl)
}
