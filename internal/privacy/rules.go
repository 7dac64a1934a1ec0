package privacy

import (
	"regexp"
	"strings"
)

// Rule names, also accepted in privacy.detectors.
const (
	RuleNationalID  = "national_id"
	RulePaymentCard = "payment_card"
	RuleEmail       = "email"
	RulePhone       = "phone"
)

// DefaultRules compiles the rule table. The order matters: the phone pattern
// is broad enough to hit digit runs that the ID and card rules should have
// claimed first.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: RuleNationalID,
			// Whole digit runs; only runs of exactly 13 pass validation.
			Pattern:  regexp.MustCompile(`[0-9]{13,}`),
			Validate: IsNationalIDValid,
			Redact:   redactNationalID,
		},
		{
			Name:     RulePaymentCard,
			Pattern:  regexp.MustCompile(`(?:[0-9][ -]*?){13,20}`),
			Validate: isCardMatch,
			Redact:   redactPaymentCard,
		},
		{
			Name:    RuleEmail,
			Pattern: regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`),
			Redact:  redactEmail,
		},
		{
			Name:    RulePhone,
			Pattern: regexp.MustCompile(`0[1-9][0-9-]{8,15}`),
			Redact:  redactPhone,
		},
	}
}

// 1103700012346 -> 110XXXXXX2346
func redactNationalID(id string) string {
	return id[:3] + "XXXXXX" + id[9:]
}

func isCardMatch(raw string) bool {
	return len(raw) > 8 && IsPaymentCardValid(digitsOnly(raw))
}

// Keeps the first and last four raw characters, separators included.
func redactPaymentCard(raw string) string {
	return raw[:4] + "********" + raw[len(raw)-4:]
}

func redactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}
	if len(local) < 2 {
		return "*@" + domain
	}
	return local[:2] + "***@" + domain
}

// Mobile numbers have ten digits, landlines nine. Anything else is left alone.
func redactPhone(raw string) string {
	digits := digitsOnly(raw)
	switch len(digits) {
	case 10:
		return digits[:3] + "XXXXX" + digits[8:]
	case 9:
		return digits[:2] + "XXXX" + digits[7:]
	default:
		return raw
	}
}
