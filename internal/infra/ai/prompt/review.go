package prompt

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// reviewTemplate has two per-call substitution points, file_name and code.
// language is bound once as a partial.
const reviewTemplate = `
For the following {{.language}} code in file "{{.file_name}}", analyze it and identify:

- Any style or formatting issues, including line numbers.
- Potential bugs or errors, including line numbers.
- Performance improvements, including line numbers.
- Best practices that are not followed, including line numbers.

Code:
{{.code}}

Constraints on Output:

The analysis must be returned in JSON format, shaped like this example:
{"file_name": "<string>", "results": {"issues": [{"type": "bug", "line": 1, "description": "<string>", "suggestion": "<string>"}]}}

'results' should be a dictionary.
Ensure all JSON keys are present and correctly named as shown.
All issue types must be one of the following: "style", "bug", "performance", "best_practice".

Only output valid JSON. DON'T output any other text or data.
`

// Review renders the per-file code review prompt.
type Review struct {
	tmpl prompts.PromptTemplate
}

// NewReview binds the language name (e.g. "Python") into the template.
func NewReview(language string) *Review {
	if language == "" {
		language = "Python"
	}
	tmpl := prompts.NewPromptTemplate(reviewTemplate, []string{"file_name", "code"})
	tmpl.PartialVariables = map[string]any{"language": language}
	return &Review{tmpl: tmpl}
}

// Render fills the template for one collected file.
func (r *Review) Render(file analysis.SourceFile) (string, error) {
	out, err := r.tmpl.Format(map[string]any{
		"file_name": file.Path,
		"code":      file.Content,
	})
	if err != nil {
		return "", fmt.Errorf("render review prompt for %s: %w", file.Path, err)
	}
	return out, nil
}
