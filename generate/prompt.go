package generate

import (
	"log/slog"
	"os"
	"strings"
	"text/template"

	qgen "github.com/Paranoid-AF/qgen"
	defaults "github.com/Paranoid-AF/qgen/default"
)

// PromptData holds the data passed to the prompt template.
type PromptData struct {
	NumQuestions   int
	Context        string
	JobDescription string
}

// LoadCustomPrompt loads a custom prompt template from the config directory.
// Returns empty string if no custom prompt exists.
func LoadCustomPrompt() string {
	promptPath := qgen.PromptPath()
	data, err := os.ReadFile(promptPath)
	if err != nil {
		return ""
	}
	slog.Info("loaded custom prompt", "path", promptPath)
	return string(data)
}

// parsePrompt parses src, falling back to the built-in template when src is
// empty or invalid.
func parsePrompt(src string) *template.Template {
	if src != "" {
		t, err := template.New("prompt").Parse(src)
		if err == nil {
			return t
		}
		slog.Warn("failed to parse prompt template, falling back to default", "error", err)
	}
	return template.Must(template.New("prompt").Parse(defaults.DefaultPrompt))
}

// renderPrompt executes t with data. A template that fails to execute is
// replaced by the built-in one.
func renderPrompt(t *template.Template, data PromptData) string {
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		slog.Warn("failed to execute prompt template, falling back to default", "error", err)
		buf.Reset()
		template.Must(template.New("prompt").Parse(defaults.DefaultPrompt)).Execute(&buf, data)
	}
	return strings.TrimRight(buf.String(), " \t\n")
}
