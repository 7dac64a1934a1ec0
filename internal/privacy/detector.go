package privacy

import (
	"fmt"

	"github.com/raaihank/iron-mask/internal/config"
	"github.com/raaihank/iron-mask/internal/logger"
	"go.uber.org/zap"
)

// Detector handles PII detection and masking. The rule table is fixed at
// construction, so a Detector is safe for concurrent use.
type Detector struct {
	rules   []Rule
	enabled map[string]bool
	logger  *logger.Logger
}

// New creates a new PII detector over rules, enabling the ones named in cfg.
func New(cfg config.PrivacyConfig, rules []Rule, log *logger.Logger) (*Detector, error) {
	detector := &Detector{
		rules:   rules,
		enabled: make(map[string]bool, len(rules)),
		logger:  log,
	}

	if err := detector.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Privacy detector initialized",
		zap.Int("total_rules", len(detector.rules)),
		zap.Strings("enabled_rules", detector.GetEnabledRules()),
	)

	return detector, nil
}

// configureDetectors enables rules based on configuration
func (d *Detector) configureDetectors(detectors []string) error {
	for _, rule := range d.rules {
		d.enabled[rule.Name] = false
	}

	for _, detector := range detectors {
		if detector == "all" {
			for _, rule := range d.rules {
				d.enabled[rule.Name] = true
			}
			continue
		}

		if _, known := d.enabled[detector]; !known {
			return fmt.Errorf("unknown detector: %s", detector)
		}
		d.enabled[detector] = true
	}

	return nil
}

// Mask returns text with every enabled rule applied. It never fails and
// returns the input unchanged when nothing matches.
func (d *Detector) Mask(text string) string {
	return d.ProcessText(text).MaskedText
}

// ProcessText processes text through all enabled rules and reports how many
// spans each one redacted.
func (d *Detector) ProcessText(text string) ProcessResult {
	maskedText := text
	var findings []Finding

	for _, rule := range d.rules {
		if !d.enabled[rule.Name] {
			continue
		}

		count := 0
		maskedText = rule.Pattern.ReplaceAllStringFunc(maskedText, func(match string) string {
			if rule.Validate != nil && !rule.Validate(match) {
				return match
			}
			out := rule.Redact(match)
			if out != match {
				count++
			}
			return out
		})

		if count > 0 {
			findings = append(findings, Finding{EntityType: rule.Name, Count: count})

			d.logger.Debug("PII detected and masked",
				zap.String("entity_type", rule.Name),
				zap.Int("count", count),
			)
		}
	}

	return ProcessResult{
		MaskedText: maskedText,
		Findings:   findings,
		Original:   text,
	}
}

// GetEnabledRules returns enabled rule names in execution order
func (d *Detector) GetEnabledRules() []string {
	enabled := make([]string, 0, len(d.rules))
	for _, rule := range d.rules {
		if d.enabled[rule.Name] {
			enabled = append(enabled, rule.Name)
		}
	}
	return enabled
}
