// Package template obtains the AI-drafted rich content for a notification
// from a (subject, body, business-name) seed. The external generator is a
// fallible, retryable collaborator; a built-in markdown renderer covers
// deployments without one.
package template

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"remind/internal/notification"
)

// Request is the seed handed to the generator.
type Request struct {
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	BusinessName string `json:"business_name,omitempty"`

	// Regenerate marks a user-triggered redo of an existing draft, so the
	// generator may vary its output instead of serving a cached render.
	Regenerate bool `json:"regenerate,omitempty"`
}

// Service produces a rendered template. Implementations must honor ctx
// cancellation: a caller that navigates away mid-generation aborts the
// call and discards the result.
//
// Failures wrap notification.ErrGenerationFailed.
type Service interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ---- built-in markdown renderer ----

type markdownService struct {
	md goldmark.Markdown
}

// NewMarkdown returns the built-in renderer: the human-authored body is
// treated as markdown and wrapped in a minimal branded shell. Used when
// no external endpoint is configured.
func NewMarkdown() Service {
	return &markdownService{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (s *markdownService) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", notification.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Body) == "" {
		return "", fmt.Errorf("%w: subject and body are required", notification.ErrGenerationFailed)
	}

	var buf bytes.Buffer
	if err := s.md.Convert([]byte(req.Body), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", notification.ErrGenerationFailed, err)
	}

	var b strings.Builder
	b.WriteString("<div class=\"reminder\">\n")
	if name := strings.TrimSpace(req.BusinessName); name != "" {
		fmt.Fprintf(&b, "  <p class=\"reminder-from\">%s</p>\n", html.EscapeString(name))
	}
	fmt.Fprintf(&b, "  <h2>%s</h2>\n", html.EscapeString(strings.TrimSpace(req.Subject)))
	b.WriteString(buf.String())
	b.WriteString("</div>\n")
	return b.String(), nil
}
