package sms

import (
	"fmt"
	"strings"

	"collections-platform/internal/debtors"
)

// Templates are keyed by name and use {{var}} placeholders. Substitutions are
// literal; there is no conditional logic. Reminder tone escalates with the
// delinquency stage.
var templates = map[string]string{
	"payment_confirmation": "Hi {{first_name}}, this confirms your commitment to pay {{amount}} by {{promise_date}}. Reply STOP to opt out of messages.",
	"payment_link":         "Hi {{first_name}}, you can pay your balance of {{amount}} here: {{payment_link}}. Reply STOP to opt out of messages.",
	"callback_scheduled":   "Hi {{first_name}}, we received your request and will call you back at {{callback_time}}. Reply STOP to opt out of messages.",
	"missed_call":          "Hi {{first_name}}, {{company_name}} tried to reach you about your account. Please call us back at {{from_number}}. Reply STOP to opt out of messages.",
	"reminder_pre":         "Hi {{first_name}}, a friendly reminder from {{company_name}}: your payment of {{amount}} is due on {{due_date}}. Reply STOP to opt out of messages.",
	"reminder_early":       "Hi {{first_name}}, this is {{company_name}}. Your payment of {{amount}} was due on {{due_date}}. Please call us at {{from_number}} to arrange payment. Reply STOP to opt out of messages.",
	"reminder_late":        "{{first_name}}, your account with {{company_name}} is past due. Amount owed: {{amount}}. Please contact us at {{from_number}} immediately to discuss payment options. Reply STOP to opt out of messages.",
	"opt_out_confirmation": "You have been unsubscribed from {{company_name}} messages. Reply START to resubscribe.",
}

// ReminderTemplate picks the reminder variant for a delinquency stage.
func ReminderTemplate(stage debtors.DelinquencyStage) string {
	switch stage {
	case debtors.StagePreDelinquency:
		return "reminder_pre"
	case debtors.StageLateDelinquency:
		return "reminder_late"
	default:
		return "reminder_early"
	}
}

// RenderTemplate substitutes vars into the named template. Unknown template
// names and unresolved placeholders are errors; a half-rendered message must
// never go out.
func RenderTemplate(name string, vars map[string]string) (string, error) {
	tpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("sms: unknown template %q", name)
	}
	out := tpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	if i := strings.Index(out, "{{"); i >= 0 {
		end := strings.Index(out[i:], "}}")
		missing := out[i:]
		if end >= 0 {
			missing = out[i : i+end+2]
		}
		return "", fmt.Errorf("sms: template %q missing value for %s", name, missing)
	}
	return out, nil
}

// TemplateNames lists available templates, for the API surface.
func TemplateNames() []string {
	out := make([]string, 0, len(templates))
	for name := range templates {
		out = append(out, name)
	}
	return out
}
