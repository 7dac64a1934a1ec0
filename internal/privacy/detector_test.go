package privacy

import (
	"strings"
	"testing"
	"time"

	"github.com/raaihank/iron-mask/internal/config"
	"github.com/raaihank/iron-mask/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T, detectors ...string) *Detector {
	t.Helper()
	if len(detectors) == 0 {
		detectors = []string{"all"}
	}
	d, err := New(config.PrivacyConfig{Detectors: detectors}, DefaultRules(), logger.NewNop())
	require.NoError(t, err)
	return d
}

func TestDetector_Mask(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "mobile phone",
			input:  "Phone: 0812345678",
			expect: "Phone: 081XXXXX78",
		},
		{
			name:   "mobile phone with dashes",
			input:  "call 081-234-5678 now",
			expect: "call 081XXXXX78 now",
		},
		{
			name:   "landline",
			input:  "office 02-123-4567",
			expect: "office 02XXXX67",
		},
		{
			name:   "phone digit count out of range",
			input:  "ref 08123456789",
			expect: "ref 08123456789",
		},
		{
			name:   "email",
			input:  "Email: test@test.com",
			expect: "Email: te***@test.com",
		},
		{
			name:   "single character local part",
			input:  "a@example.org",
			expect: "*@example.org",
		},
		{
			name:   "email is case insensitive",
			input:  "Contact John.Doe@Example.CO.TH please",
			expect: "Contact Jo***@Example.CO.TH please",
		},
		{
			name:   "valid national id",
			input:  "ID: 1103700012346",
			expect: "ID: 110XXXXXX2346",
		},
		{
			name:   "invalid national id checksum",
			input:  "ID: 1103700012345",
			expect: "ID: 1103700012345",
		},
		{
			name:   "national id inside a longer digit run",
			input:  "seq 11037000123461",
			expect: "seq 11037000123461",
		},
		{
			name:   "card with spaces",
			input:  "card 4111 1111 1111 1111 exp 12/29",
			expect: "card 4111********1111 exp 12/29",
		},
		{
			name:   "card with dashes",
			input:  "4111-1111-1111-1111",
			expect: "4111********1111",
		},
		{
			name:   "thirteen digit card",
			input:  "Card: 4222222222222",
			expect: "Card: 4222********2222",
		},
		{
			name:   "luhn failure is left alone",
			input:  "order 4111111111111112",
			expect: "order 4111111111111112",
		},
		{
			name:   "no pii",
			input:  "GET /healthz 200 3ms",
			expect: "GET /healthz 200 3ms",
		},
		{
			name:   "empty",
			input:  "",
			expect: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, d.Mask(tc.input))
		})
	}
}

func TestDetector_MixedPIIInOneSentence(t *testing.T) {
	d := newTestDetector(t)

	input := "ติดต่อคุณสมชายที่เบอร์ 0812345678 หรืออีเมล test@test.com เลขบัตร 1103700012346"
	masked := d.Mask(input)

	assert.Contains(t, masked, "081XXXXX78")
	assert.Contains(t, masked, "te***@test.com")
	assert.Contains(t, masked, "110XXXXXX2346")
	assert.True(t, strings.HasPrefix(masked, "ติดต่อคุณสมชายที่เบอร์ "))
}

func TestDetector_ProcessTextFindings(t *testing.T) {
	d := newTestDetector(t)

	result := d.ProcessText("a@b.io 0812345678 0898765432 1103700012346 1103700012345")

	assert.Equal(t, []Finding{
		{EntityType: RuleNationalID, Count: 1},
		{EntityType: RuleEmail, Count: 1},
		{EntityType: RulePhone, Count: 2},
	}, result.Findings)
	assert.Equal(t, "a@b.io 0812345678 0898765432 1103700012346 1103700012345", result.Original)

	clean := d.ProcessText("nothing to see")
	assert.Empty(t, clean.Findings)
	assert.Equal(t, "nothing to see", clean.MaskedText)
}

func TestDetector_SelectedDetectors(t *testing.T) {
	d := newTestDetector(t, RuleEmail)

	assert.Equal(t, []string{RuleEmail}, d.GetEnabledRules())
	assert.Equal(t, "te***@test.com 0812345678", d.Mask("test@test.com 0812345678"))
}

func TestDetector_EnabledRulesKeepRuleOrder(t *testing.T) {
	d := newTestDetector(t, RulePhone, RuleNationalID)
	assert.Equal(t, []string{RuleNationalID, RulePhone}, d.GetEnabledRules())
}

func TestDetector_UnknownDetector(t *testing.T) {
	_, err := New(config.PrivacyConfig{Detectors: []string{"passport"}}, DefaultRules(), logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown detector: passport")
}

func TestDetector_LargeInputStaysFast(t *testing.T) {
	d := newTestDetector(t)
	large := strings.Repeat("a", 10000)

	start := time.Now()
	assert.Equal(t, large, d.Mask(large))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDetector_MaskIsIdempotent(t *testing.T) {
	d := newTestDetector(t)

	inputs := []string{
		"User: John Doe, Phone: 0812345678, Email: john@test.com, ID: 1103700012346",
		"card 4111 1111 1111 1111, landline 02-123-4567",
		"x@y.zz",
	}
	for _, in := range inputs {
		once := d.Mask(in)
		assert.Equal(t, once, d.Mask(once), in)
	}
}

func BenchmarkDetector_MixedPII(b *testing.B) {
	d, _ := New(config.PrivacyConfig{Detectors: []string{"all"}}, DefaultRules(), logger.NewNop())
	input := "User: สมชาย เข็มกลัด, ID: 1103700012346, Phone: 0812345678, Email: test@gmail.com"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = d.Mask(input)
	}
}

func BenchmarkDetector_LargePayload(b *testing.B) {
	d, _ := New(config.PrivacyConfig{Detectors: []string{"all"}}, DefaultRules(), logger.NewNop())
	input := strings.Repeat("User: สมชาย, ID: 1103700012346, Phone: 0812345678 | ", 200)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = d.Mask(input)
	}
}
