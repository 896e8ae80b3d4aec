// File: internal/evolution/template.go
package evolution

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
)

// PromptContext carries every value a prompt template may reference. The
// generation prompt sees the fields up to StepID; the update prompt
// additionally sees PlaybookLatestVersion, StepSize and BatchSize. Slices are
// the full run history, so templates can reference the entire evolution, not
// just the latest state.
type PromptContext struct {
	CurrentPlaybook  string
	CurrentTask      string
	CurrentCriterion string
	Tasks            []string
	Criteria         []string
	Generations      []schemas.Generation
	Playbooks        []string
	StepID           int

	// Update-prompt extras.
	PlaybookLatestVersion int
	StepSize              int
	BatchSize             int
}

// Template wraps a parsed prompt template. Rendering is pure: same context in,
// same prompt out, no side effects.
type Template struct {
	name string
	tmpl *template.Template
}

// ParseTemplate parses template text. A syntax error here is a broken template
// file, i.e. a fatal configuration error, never something to retry.
func ParseTemplate(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", name, err)
	}
	return &Template{name: name, tmpl: tmpl}, nil
}

// LoadTemplate reads and parses a template file. A missing or malformed file
// is a fatal startup error.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	return ParseTemplate(filepath.Base(path), string(data))
}

// Render binds the context to the template and returns the final prompt. An
// execution error (e.g. a placeholder naming an unknown field) indicates a
// broken template and is fatal to the run.
func (t *Template) Render(ctx PromptContext) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, ctx); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", t.name, err)
	}
	return sb.String(), nil
}
