package enrichment

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/phrazzld/quill-api/internal/domain"
	"gopkg.in/yaml.v3"
)

// Content excerpt limits embedded in prompts.
const (
	SlugPromptContentLength    = 500
	SummaryPromptContentLength = 1000
	promptEllipsis             = "..."
)

const (
	defaultSlugPrompt = "Generate a unique, SEO-friendly URL slug (max 60 characters) for an article with the " +
		"following title and content. The slug should be lowercase, use hyphens instead of spaces, and be " +
		"descriptive. Only return the slug, nothing else.\n\nTitle: {{.Title}}\n\nContent: {{.Content}}"

	defaultSummaryPrompt = "Generate a brief, engaging summary (2-3 sentences, max 200 characters) of the " +
		"following article content. Focus on the main points and make it compelling for readers. Only " +
		"return the summary, nothing else.\n\nContent: {{.Content}}"
)

// promptFile is the YAML shape accepted by LoadPrompts.
type promptFile struct {
	Slug    string `yaml:"slug"`
	Summary string `yaml:"summary"`
}

type promptData struct {
	Title   string
	Content string
}

// Prompts renders the slug and summary prompts.
type Prompts struct {
	slug    *template.Template
	summary *template.Template
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() *Prompts {
	return &Prompts{
		slug:    template.Must(template.New("slug").Parse(defaultSlugPrompt)),
		summary: template.Must(template.New("summary").Parse(defaultSummaryPrompt)),
	}
}

// LoadPrompts reads overrides from a YAML file with optional "slug" and
// "summary" keys. An empty path returns the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file %s: %w", path, err)
	}
	var file promptFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
	}

	if file.Slug != "" {
		if p.slug, err = template.New("slug").Option("missingkey=error").Parse(file.Slug); err != nil {
			return nil, fmt.Errorf("invalid slug prompt: %w", err)
		}
	}
	if file.Summary != "" {
		if p.summary, err = template.New("summary").Option("missingkey=error").Parse(file.Summary); err != nil {
			return nil, fmt.Errorf("invalid summary prompt: %w", err)
		}
	}
	return p, nil
}

// Slug renders the slug prompt with the title and a content excerpt.
func (p *Prompts) Slug(title, content string) (string, error) {
	return render(p.slug, promptData{
		Title:   title,
		Content: domain.TruncateRunes(content, SlugPromptContentLength) + promptEllipsis,
	})
}

// Summary renders the summary prompt with a content excerpt.
func (p *Prompts) Summary(content string) (string, error) {
	return render(p.summary, promptData{
		Content: domain.TruncateRunes(content, SummaryPromptContentLength) + promptEllipsis,
	})
}

func render(t *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
