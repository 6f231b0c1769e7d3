package mailer

import (
	"fmt"
	"strings"
)

// Template names the service can render.
const (
	TemplateWelcome             = "welcome"
	TemplateTicketReply         = "ticket_reply"
	TemplateSubscriptionRenewal = "subscription_renewal"
	TemplatePaymentReceipt      = "payment_receipt"
	TemplateGoalReached         = "goal_reached"
)

// Template is one renderable email. Subject and HTML may carry {{key}}
// placeholders substituted from the caller's data map.
type Template struct {
	Subject string
	HTML    string
}

var templates = map[string]Template{
	TemplateWelcome: {
		Subject: "Welcome to LifeOS, {{name}}",
		HTML: "<h1>Welcome, {{name}}!</h1>" +
			"<p>Your LifeOS account is ready. Plan your day, track your habits and keep your money in view, all in one place.</p>",
	},
	TemplateTicketReply: {
		Subject: "Re: {{subject}}",
		HTML: "<p>Hi {{name}},</p>" +
			"<p>Support replied to your ticket <strong>{{subject}}</strong>:</p>" +
			"<blockquote>{{reply}}</blockquote>",
	},
	TemplateSubscriptionRenewal: {
		Subject: "{{service}} renews soon",
		HTML: "<p>Hi {{name}},</p>" +
			"<p>Your subscription <strong>{{service}}</strong> renews on {{date}} for {{amount}}.</p>",
	},
	TemplatePaymentReceipt: {
		Subject: "Payment received",
		HTML: "<p>Hi {{name}},</p>" +
			"<p>We received your payment of {{amount}} and upgraded you to the <strong>{{plan}}</strong> plan. Thank you!</p>",
	},
	TemplateGoalReached: {
		Subject: "You reached your savings goal 🎉",
		HTML: "<p>Hi {{name}},</p>" +
			"<p>Your savings goal <strong>{{goal}}</strong> just hit its target of {{target}}. Time to celebrate, or raise the bar.</p>",
	},
}

// Render substitutes data into the named template.
func Render(name string, data map[string]string) (subject, html string, err error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}

	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	replacer := strings.NewReplacer(pairs...)

	return replacer.Replace(tmpl.Subject), replacer.Replace(tmpl.HTML), nil
}
