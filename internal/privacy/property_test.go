package privacy

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// nationalIDCheckDigit completes twelve digits into a valid national ID
func nationalIDCheckDigit(first12 string) string {
	sum := 0
	for i := 0; i < 12; i++ {
		sum += int(first12[i]-'0') * (13 - i)
	}
	return first12 + fmt.Sprint((11-sum%11)%10)
}

// luhnComplete appends the check digit that makes digits Luhn-valid
func luhnComplete(digits string) string {
	for c := byte('0'); c <= '9'; c++ {
		candidate := digits + string(c)
		if IsPaymentCardValid(candidate) {
			return candidate
		}
	}
	return digits
}

func digitString(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.NumChar()).Map(func(r []rune) string { return string(r) })
}

func TestMaskProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	all := newTestDetector(t)
	idOnly := newTestDetector(t, RuleNationalID)
	cardOnly := newTestDetector(t, RulePaymentCard)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("valid national ids keep first 3 and last 4 digits", prop.ForAll(
		func(first12 string) bool {
			id := nationalIDCheckDigit(first12)
			out := all.Mask("id " + id + " end")
			return out == "id "+id[:3]+"XXXXXX"+id[9:]+" end"
		},
		digitString(12),
	))

	properties.Property("checksum-failing national ids are untouched", prop.ForAll(
		func(first12 string, delta int) bool {
			valid := nationalIDCheckDigit(first12)
			bad := valid[:12] + fmt.Sprint((int(valid[12]-'0')+delta)%10)
			in := "id " + bad + " end"
			return idOnly.Mask(in) == in
		},
		digitString(12),
		gen.IntRange(1, 9),
	))

	properties.Property("luhn-valid cards keep first and last four raw characters", prop.ForAll(
		func(body string, sep string) bool {
			card := luhnComplete("4" + body)
			raw := card[0:4] + sep + card[4:8] + sep + card[8:12] + sep + card[12:16]
			out := all.Mask("pay " + raw + ", thanks")
			return out == "pay "+raw[:4]+"********"+raw[len(raw)-4:]+", thanks"
		},
		digitString(14),
		gen.OneConstOf("", " ", "-"),
	))

	properties.Property("luhn-failing card shapes are untouched", prop.ForAll(
		func(body string) bool {
			card := luhnComplete("4" + body)
			last := (int(card[15]-'0') + 1) % 10
			bad := card[:15] + fmt.Sprint(last)
			in := "pay " + bad
			return cardOnly.Mask(in) == in
		},
		digitString(14),
	))

	properties.Property("emails keep the domain and hide the local part", prop.ForAll(
		func(local string) bool {
			out := all.Mask("mail " + local + "@example.com today")
			if !strings.Contains(out, "@example.com today") {
				return false
			}
			return out == "mail "+local[:2]+"***@example.com today" && !strings.Contains(out, local+"@")
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) >= 3 }),
	))

	properties.Property("mobile numbers keep 3 prefix and 2 suffix digits", prop.ForAll(
		func(second int, rest string) bool {
			number := "0" + fmt.Sprint(second) + rest
			out := all.Mask("tel " + number)
			return out == "tel "+number[:3]+"XXXXX"+number[8:]
		},
		gen.IntRange(1, 9),
		digitString(8),
	))

	properties.Property("landlines keep 2 prefix and 2 suffix digits", prop.ForAll(
		func(second int, mid, tail string) bool {
			number := "0" + fmt.Sprint(second) + "-" + mid + "-" + tail
			digits := digitsOnly(number)
			out := all.Mask("tel " + number)
			return out == "tel "+digits[:2]+"XXXX"+digits[7:]
		},
		gen.IntRange(1, 9),
		digitString(3),
		digitString(4),
	))

	properties.Property("phone shapes with other digit counts are untouched", prop.ForAll(
		func(second int, rest string) bool {
			in := "tel 0" + fmt.Sprint(second) + rest
			return all.Mask(in) == in
		},
		gen.IntRange(1, 9),
		digitString(9),
	))

	properties.Property("masking is idempotent", prop.ForAll(
		func(parts []string) bool {
			in := strings.Join(parts, ", ")
			once := all.Mask(in)
			return all.Mask(once) == once
		},
		gen.SliceOf(gen.OneConstOf(
			"0812345678",
			"02-123-4567",
			"test@test.com",
			"a@b.io",
			"1103700012346",
			"1103700012345",
			"4111 1111 1111 1111",
			"4222222222222",
			"plain words",
		)),
	))

	properties.TestingRun(t)
}
