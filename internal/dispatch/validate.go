package dispatch

import (
	"net/mail"
	"strings"

	"github.com/ldi/caretaker/pkg/models"
)

const phoneChars = "0123456789+() -."

func validateEmail(recipient string) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return models.Validationf("email recipient is required")
	}
	if _, err := mail.ParseAddress(recipient); err != nil {
		return models.Validationf("invalid email recipient %q", recipient)
	}
	return nil
}

func validatePhone(recipient string) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return models.Validationf("sms recipient is required")
	}

	digits := 0
	for _, r := range recipient {
		if !strings.ContainsRune(phoneChars, r) {
			return models.Validationf("invalid sms recipient %q", recipient)
		}
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 {
		return models.Validationf("invalid sms recipient %q", recipient)
	}
	return nil
}
