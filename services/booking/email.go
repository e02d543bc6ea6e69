package booking

import (
	"strings"

	"daypass/models"
)

// ClassifyEmailError turns the booking store's email error into an advisory
// warning. It returns nil when the email was sent.
func ClassifyEmailError(sent bool, detail string) *models.EmailWarning {
	if sent {
		return nil
	}
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "domain") && (strings.Contains(lower, "verif") || strings.Contains(lower, "not allowed")):
		return &models.EmailWarning{
			Kind:    models.EmailSenderDomainUnverified,
			Message: "Your booking is confirmed, but our email provider has not verified our sending domain yet, so no confirmation email was sent. Please keep your booking reference.",
		}
	case strings.Contains(lower, "recipient") || strings.Contains(lower, "no email") ||
		strings.Contains(lower, "missing `to`") || strings.Contains(lower, "no destination") ||
		strings.Contains(lower, "to address"):
		return &models.EmailWarning{
			Kind:    models.EmailNoDestination,
			Message: "Your booking is confirmed, but we had no valid email address to send the confirmation to. Please keep your booking reference.",
		}
	default:
		w := &models.EmailWarning{
			Kind:    models.EmailGeneric,
			Message: "Your booking is confirmed, but the confirmation email could not be sent.",
			Detail:  detail,
		}
		if detail != "" {
			w.Message += " Details: " + detail
		}
		return w
	}
}
