package notifications

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gigconnect/gigconnect/internal/history"
	"github.com/gigconnect/gigconnect/internal/models"
	"github.com/gigconnect/gigconnect/internal/utils"
)

type templateSource struct {
	subject string
	body    string
}

// Bodies are markdown. Autoescape is off because the output is plain text
// until goldmark renders and bluemonday sanitizes it.
var templateSources = map[EventKind]templateSource{
	EventMessage: {
		subject: "New message from {{ actor }}",
		body: `{{ actor }} sent you a message about ticket {{ ticket_id }}:

> {{ excerpt }}

Status: **{{ status }}**. [Open the conversation]({{ link }})`,
	},
	EventAttachment: {
		subject: "{{ actor }} shared {% if attachment %}a file{% else %}a message{% endif %}",
		body: `{{ actor }} sent a message{% if attachment %} with an attachment{% endif %} on ticket {{ ticket_id }}.
{% if excerpt %}
> {{ excerpt }}
{% endif %}{% if attachment %}
[Download the attachment]({{ attachment }})
{% endif %}
[Open the conversation]({{ link }})`,
	},
	EventPriceProposed: {
		subject: "{{ actor }} proposed {{ price }}",
		body: `{{ actor }} proposed a price of **{{ price }}** for ticket {{ ticket_id }}.

The ticket is now **{{ status }}**. [Review the offer]({{ link }})`,
	},
	EventPriceAccepted: {
		subject: "Price of {{ price }} accepted",
		body: `{{ actor }} accepted the price of **{{ price }}**. The buyer can now confirm payment.

[View the ticket]({{ link }})`,
	},
	EventPaymentConfirmed: {
		subject: "Payment of {{ price }} confirmed",
		body: `{{ actor }} confirmed payment of **{{ price }}**. Your balance has been credited.

Mark the gig as completed once the work is delivered: [view the ticket]({{ link }})`,
	},
	EventCompleted: {
		subject: "Gig marked as completed",
		body: `{{ actor }} marked ticket {{ ticket_id }} as **{{ status }}**.

Please close the ticket and leave a rating: [view the ticket]({{ link }})`,
	},
	EventClosed: {
		subject: "Ticket closed{% if rating %} with a {{ rating }}-star rating{% endif %}",
		body: `{{ actor }} closed ticket {{ ticket_id }}{% if rating %} and rated the gig **{{ rating }}/5**{% endif %}.

[View the ticket]({{ link }})`,
	},
	EventAIResponse: {
		subject: "New AI reply on your ticket",
		body: `{{ ai_name }} replied on ticket {{ ticket_id }}:

> {{ excerpt }}

[Open the conversation]({{ link }})`,
	},
}

type compiledTemplate struct {
	subject *pongo2.Template
	body    *pongo2.Template
}

// Renderer turns events into e-mail bodies.
type Renderer struct {
	templates map[EventKind]compiledTemplate
	branding  *Branding
	appName   string
	baseURL   string
	title     cases.Caser
}

// NewRenderer compiles every event template.
func NewRenderer(appName, baseURL string) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[EventKind]compiledTemplate, len(templateSources)),
		branding:  DefaultBranding(),
		appName:   appName,
		baseURL:   strings.TrimRight(baseURL, "/"),
		title:     cases.Title(language.English),
	}
	for kind, src := range templateSources {
		subject, err := pongo2.FromString("{% autoescape off %}" + src.subject + "{% endautoescape %}")
		if err != nil {
			return nil, fmt.Errorf("notifications: compile %s subject: %w", kind, err)
		}
		body, err := pongo2.FromString("{% autoescape off %}" + src.body + "{% endautoescape %}")
		if err != nil {
			return nil, fmt.Errorf("notifications: compile %s body: %w", kind, err)
		}
		r.templates[kind] = compiledTemplate{subject: subject, body: body}
	}
	return r, nil
}

// Render builds the message for recipient. The text part is the branded
// markdown and the HTML part is its rendering.
func (r *Renderer) Render(ev Event, recipient *models.User) (EmailMessage, error) {
	tpl, ok := r.templates[ev.Kind]
	if !ok {
		return EmailMessage{}, fmt.Errorf("notifications: no template for %q", ev.Kind)
	}
	if ev.Ticket == nil || recipient == nil {
		return EmailMessage{}, fmt.Errorf("notifications: %s event without ticket or recipient", ev.Kind)
	}

	ctx := pongo2.Context{
		"actor":      actorOrDefault(ev.ActorName),
		"ticket_id":  ev.Ticket.ID,
		"status":     r.title.String(string(ev.Ticket.Status)),
		"excerpt":    history.Excerpt(ev.Content, 200),
		"attachment": ev.Attachment,
		"link":       r.baseURL + "/tickets/" + ev.Ticket.ID,
		"ai_name":    models.AISenderName,
		"price":      "",
		"rating":     0,
	}
	if ev.Ticket.AgreedPrice != nil {
		ctx["price"] = history.FormatPrice(*ev.Ticket.AgreedPrice)
	}
	if ev.Rating != nil {
		ctx["rating"] = *ev.Rating
	}

	subject, err := tpl.subject.Execute(ctx)
	if err != nil {
		return EmailMessage{}, fmt.Errorf("notifications: render %s subject: %w", ev.Kind, err)
	}
	body, err := tpl.body.Execute(ctx)
	if err != nil {
		return EmailMessage{}, fmt.Errorf("notifications: render %s body: %w", ev.Kind, err)
	}

	text := ApplyBranding(body, r.branding, &RenderContext{RecipientName: recipient.Name, AppName: r.appName})
	return EmailMessage{
		To:      []string{recipient.Email},
		Subject: fmt.Sprintf("[%s] %s", r.appName, strings.TrimSpace(subject)),
		Text:    text,
		HTML:    utils.MarkdownToHTML(text),
	}, nil
}

func actorOrDefault(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "Someone"
	}
	return name
}
