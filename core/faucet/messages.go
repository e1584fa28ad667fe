package faucet

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Template names besides the error codes.
const (
	MessageDripSuccess = "dripSuccess"
	MessageBalance     = "balance"
	MessageUsage       = "usage"
)

// FallbackMessage is rendered for codes without a usable template.
const FallbackMessage = "Faucet error"

var defaultMessages = map[string]string{
	MessageDripSuccess:         "Sent {{.Amount}} to {{.Account}}. Transaction: {{.TxHash}}",
	MessageBalance:             "Faucet balance: {{.Balance}}",
	MessageUsage:               "Usage:\n  !balance - show the faucet balance\n  !drip <address> [strategy] - request tokens",
	string(CodeLimitExceeded):  "{{.Account}} has reached the request limit, please try again later.",
	string(CodeQueueSaturated): "The faucet is busy, please try again later.",
}

// MessageData is the data available to message templates.
type MessageData struct {
	Account  string
	Address  string
	Strategy string
	Amount   string
	TxHash   string
	Balance  string
	Reason   string
}

// Messages renders operator-customizable text keyed by template name or error code.
type Messages struct {
	templates map[string]*template.Template
}

// NewMessages parses the given templates on top of the built-in ones.
func NewMessages(src map[string]string) (*Messages, error) {
	m := &Messages{templates: make(map[string]*template.Template, len(defaultMessages)+len(src))}
	for _, set := range []map[string]string{defaultMessages, src} {
		for name, text := range set {
			tpl, err := template.New(name).Option("missingkey=zero").Parse(text)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, name, err)
			}
			m.templates[name] = tpl
		}
	}
	return m, nil
}

// Render executes the named template. Unknown names and execution errors
// produce FallbackMessage.
func (m *Messages) Render(name string, data MessageData) string {
	tpl, ok := m.templates[name]
	if !ok {
		return FallbackMessage
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return FallbackMessage
	}
	return b.String()
}

// RenderError renders the template of err's code. The account defaults to
// the identity carried by the error.
func (m *Messages) RenderError(err error, data MessageData) string {
	code := CodeOf(err)
	if code == "" {
		return FallbackMessage
	}
	var fe *Error
	if errors.As(err, &fe) {
		if data.Account == "" {
			data.Account = fe.Identity
		}
		if data.Reason == "" {
			data.Reason = fe.Reason
		}
	}
	return m.Render(string(code), data)
}
