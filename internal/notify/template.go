package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Compliance Alert {{.EventLabel}}]
Location: {{.Location}}
Sensor: {{.Sensor}}
Violation: {{.Violation}}
Last Value: {{.LastValue}}
Opened: {{.OpenedAt}}
Status: {{.Status}}
Severity: {{.Severity}}
{{- if .Stage}}
Stage: {{.Stage}}
Recipient: {{.Recipient}}
{{- end}}
Suggestion: {{.Suggestion}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Location   string
	Sensor     string
	Violation  string
	LastValue  string
	OpenedAt   string
	Status     string
	Severity   string
	Stage      string
	Recipient  string
	Suggestion string
	Event      string
	EventLabel string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alert-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
