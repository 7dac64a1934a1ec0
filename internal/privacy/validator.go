package privacy

// IsPaymentCardValid applies the Luhn checksum to a string of ASCII digits.
// Callers strip separators first; any other byte makes the number invalid.
func IsPaymentCardValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

// IsNationalIDValid checks a 13 digit national ID number. The first twelve
// digits are weighted 13 down to 2 and the last digit must equal
// (11 - sum%11) % 10.
func IsNationalIDValid(id string) bool {
	if len(id) != 13 || !isDigits(id) {
		return false
	}

	sum := 0
	for i := 0; i < 12; i++ {
		sum += int(id[i]-'0') * (13 - i)
	}

	check := (11 - sum%11) % 10
	return int(id[12]-'0') == check
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// digitsOnly drops every byte that is not an ASCII digit
func digitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
