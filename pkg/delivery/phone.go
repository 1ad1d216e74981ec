package delivery

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

// PhoneValidator normalizes recipients to E.164.
type PhoneValidator struct {
	region string
}

// NewPhoneValidator creates a validator that parses numbers without a
// country code in region (e.g. "IN").
func NewPhoneValidator(region string) *PhoneValidator {
	if region == "" {
		region = config.DefaultGatewayRegion
	}
	return &PhoneValidator{region: strings.ToUpper(region)}
}

// Normalize returns the E.164 form of recipient or a KindInvalidRecipient error.
func (v *PhoneValidator) Normalize(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", NewError(KindInvalidRecipient, "missing recipient", nil)
	}

	parsed, err := phonenumbers.Parse(recipient, v.region)
	if err != nil {
		return "", NewError(KindInvalidRecipient, "unparseable phone number", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", NewError(KindInvalidRecipient, "invalid phone number", nil)
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
