package privacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raaihank/iron-mask/internal/config"
)

const (
	// Strings at or above this length pass through unmasked.
	maxMaskableStringLen = 5000

	namePlaceholder = "***"
)

// MaskTree masks a decoded JSON value. Maps and slices are rewritten in
// place; the returned value must be used for scalar roots. Nodes deeper than
// cfg.MaxDepth are left untouched.
func (d *Detector) MaskTree(value any, depth int, cfg config.MaskingConfig) any {
	if depth > cfg.MaxDepth {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			if cfg.Excluded(key) {
				continue
			}

			if s, ok := val.(string); ok && isNameKey(key) {
				v[key] = MaskName(s)
				continue
			}

			v[key] = d.MaskTree(val, depth+1, cfg)
		}
		return v

	case []any:
		for i, val := range v {
			v[i] = d.MaskTree(val, depth+1, cfg)
		}
		return v

	case string:
		if len(v) < maxMaskableStringLen {
			return d.Mask(v)
		}
		return v

	default:
		return value
	}
}

// MaskJSON decodes a JSON document, masks it with MaskTree and encodes it
// again. Numbers keep their original text.
func (d *Detector) MaskJSON(data []byte, cfg config.MaskingConfig) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("failed to decode json: trailing data after document")
	}

	out, err := json.Marshal(d.MaskTree(doc, 0, cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to encode json: %w", err)
	}
	return out, nil
}

// MaskName keeps the first two characters of a name.
func MaskName(name string) string {
	runes := []rune(name)
	if len(runes) <= 1 {
		return namePlaceholder
	}
	return string(runes[:2]) + namePlaceholder
}

func isNameKey(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "name") || strings.Contains(lower, "user")
}
