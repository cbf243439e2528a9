package service

import (
	"fmt"

	"github.com/osteele/liquid"
)

// Mail template names.
const (
	TemplateVerification = "newsletter_verif"
	TemplateVoucher      = "newsletter_voucher"
	TemplateConfirmation = "newsletter_conf"
)

type mailTemplateSource struct {
	subject string
	html    string
	text    string
}

var mailTemplateSources = map[string]mailTemplateSource{
	TemplateVerification: {
		subject: "Email verification",
		html: `<p>Hi,</p>
<p>Thank you for subscribing to the newsletter of {{ shop_name | escape }}.</p>
<p>Please confirm your email address by clicking the link below:</p>
<p><a href="{{ verif_url | escape }}">{{ verif_url | escape }}</a></p>`,
		text: `Hi,

Thank you for subscribing to the newsletter of {{ shop_name }}.
Please confirm your email address by opening this link:
{{ verif_url }}`,
	},
	TemplateVoucher: {
		subject: "Newsletter voucher",
		html: `<p>Hi,</p>
<p>Thank you for subscribing to the newsletter of {{ shop_name | escape }}.</p>
<p>Here is your discount code: <strong>{{ discount | escape }}</strong></p>`,
		text: `Hi,

Thank you for subscribing to the newsletter of {{ shop_name }}.
Here is your discount code: {{ discount }}`,
	},
	TemplateConfirmation: {
		subject: "Newsletter confirmation",
		html: `<p>Hi,</p>
<p>You are now subscribed to the newsletter of {{ shop_name | escape }}.</p>`,
		text: `Hi,

You are now subscribed to the newsletter of {{ shop_name }}.`,
	},
}

type parsedMailTemplate struct {
	subject string
	html    *liquid.Template
	text    *liquid.Template
}

// RenderedMail is a template rendered with its bindings.
type RenderedMail struct {
	Subject string
	HTML    string
	Text    string
}

// MailTemplates keeps the parsed liquid templates of the newsletter mails.
type MailTemplates struct {
	templates map[string]parsedMailTemplate
}

// NewMailTemplates parses every built-in template once.
func NewMailTemplates() (*MailTemplates, error) {
	engine := liquid.NewEngine()
	parsed := make(map[string]parsedMailTemplate, len(mailTemplateSources))

	for name, src := range mailTemplateSources {
		html, err := engine.ParseString(src.html)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s html template: %w", name, err)
		}
		text, err := engine.ParseString(src.text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s text template: %w", name, err)
		}
		parsed[name] = parsedMailTemplate{subject: src.subject, html: html, text: text}
	}
	return &MailTemplates{templates: parsed}, nil
}

// Render renders the named template.
func (t *MailTemplates) Render(name string, bindings map[string]interface{}) (*RenderedMail, error) {
	tpl, ok := t.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown mail template %q", name)
	}
	html, err := tpl.html.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s html: %w", name, err)
	}
	text, err := tpl.text.RenderString(bindings)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s text: %w", name, err)
	}
	return &RenderedMail{Subject: tpl.subject, HTML: html, Text: text}, nil
}
