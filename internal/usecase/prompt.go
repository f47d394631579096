package usecase

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"

	"rag-agent/internal/domain"
)

// historyWindow is the number of most recent turns replayed to the model.
const historyWindow = 5

var answerTemplate = template.Must(
	template.New("answer").Funcs(sprig.TxtFuncMap()).Parse(answerTemplateText()),
)

type answerPrompt struct {
	Context  string
	Question string
	Rules    []string
}

func assembleMessages(history domain.History, question, contextBlock string) ([]domain.ChatMessage, error) {
	recent := history.Recent(historyWindow)
	messages := make([]domain.ChatMessage, 0, 2*len(recent)+2)
	for _, t := range recent {
		messages = append(messages,
			domain.ChatMessage{Role: domain.RoleUser, Content: t.Question},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: t.Answer},
		)
	}

	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: question})

	if strings.TrimSpace(contextBlock) == "" {
		return messages, nil
	}
	prompt, err := renderAnswerPrompt(contextBlock, question)
	if err != nil {
		return nil, err
	}
	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: prompt}), nil
}

func renderAnswerPrompt(contextBlock, question string) (string, error) {
	var b strings.Builder
	if err := answerTemplate.Execute(&b, answerPrompt{Context: contextBlock, Question: question, Rules: answerRules}); err != nil {
		return "", fmt.Errorf("usecase: render answer prompt: %w", err)
	}
	return b.String(), nil
}

func answerTemplateText() string {
	return strings.Join([]string{
		"You are a GenAI application helping provide answers based on the given context.",
		"Do not answer the question if you can't answer from the given context.",
		"Context: {{ .Context | trim }}",
		"",
		"Instructions:",
		"{{- range $i, $rule := .Rules }}",
		"{{ add1 $i }}. {{ $rule }}",
		"{{- end }}",
		"",
		"Sources should be listed at the end in this format:",
		"Sources:",
		"- Source Name 1: Page Numbers (comma-separated)",
		"- Source Name 2: Page Numbers (comma-separated)",
		"",
		"Question: {{ .Question | trim }}",
		"Answer:",
	}, "\n")
}

var answerRules = []string{
	"Read the provided question carefully",
	"Use only the information from the provided context to answer",
	"If the answer isn't in the context, say so",
	"Provide clear, concise answers",
	"Use markdown formatting when needed (e.g., for tables, lists)",
	"Include relevant examples from the context when applicable",
	"If a source has multiple page numbers, list them on the same line",
}
