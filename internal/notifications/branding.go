package notifications

import (
	"strings"
)

// Snippet is a salutation or signature block. Text may contain placeholders.
type Snippet struct {
	Text string
}

// Branding wraps every notification body.
type Branding struct {
	Salutation *Snippet
	Signature  *Snippet
}

// DefaultBranding greets the recipient by name and signs with the app name.
func DefaultBranding() *Branding {
	return &Branding{
		Salutation: &Snippet{Text: "Hi <RECIPIENT_NAME>,"},
		Signature:  &Snippet{Text: "The <APP_NAME> team"},
	}
}

// RenderContext carries values used to interpolate placeholders.
type RenderContext struct {
	RecipientName string
	AppName       string
}

// ApplyBranding stitches salutation and signature around the base body and
// expands placeholders. The result is markdown.
func ApplyBranding(base string, branding *Branding, ctx *RenderContext) string {
	if branding == nil {
		return strings.TrimSpace(applyPlaceholders(base, ctx))
	}
	blocks := []string{
		snippetText(branding.Salutation, ctx),
		strings.TrimSpace(applyPlaceholders(base, ctx)),
		snippetText(branding.Signature, ctx),
	}
	return strings.Join(filterEmpty(blocks), "\n\n")
}

func snippetText(snippet *Snippet, ctx *RenderContext) string {
	if snippet == nil {
		return ""
	}
	return applyPlaceholders(snippet.Text, ctx)
}

func applyPlaceholders(value string, ctx *RenderContext) string {
	if ctx == nil {
		ctx = &RenderContext{}
	}
	name := strings.TrimSpace(ctx.RecipientName)
	if name == "" {
		name = "there"
	}
	replacer := strings.NewReplacer(
		"<RECIPIENT_NAME>", name,
		"<APP_NAME>", strings.TrimSpace(ctx.AppName),
	)
	return strings.TrimSpace(replacer.Replace(value))
}

func filterEmpty(values []string) []string {
	result := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		result = append(result, v)
	}
	return result
}
