package privacy

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/raaihank/iron-mask/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskName(t *testing.T) {
	assert.Equal(t, "***", MaskName(""))
	assert.Equal(t, "***", MaskName("J"))
	assert.Equal(t, "Jo***", MaskName("John"))
	assert.Equal(t, "สม***", MaskName("สมชาย"))
}

func TestDetector_MaskTree(t *testing.T) {
	d := newTestDetector(t)
	cfg := config.MaskingConfig{ExcludeFields: []string{"trace_id"}, MaxDepth: 20}

	doc := map[string]any{
		"username":  "somchai",
		"FirstName": "Ann",
		"trace_id":  "0812345678",
		"message":   "call me at 0812345678",
		"contacts": []any{
			"test@test.com",
			map[string]any{"phone": "02-123-4567", "user": map[string]any{"id": "1103700012346"}},
		},
		"count": json.Number("42"),
		"ok":    true,
	}

	out := d.MaskTree(doc, 0, cfg)
	masked := out.(map[string]any)

	assert.Equal(t, "so***", masked["username"])
	assert.Equal(t, "An***", masked["FirstName"])
	assert.Equal(t, "0812345678", masked["trace_id"])
	assert.Equal(t, "call me at 081XXXXX78", masked["message"])
	assert.Equal(t, json.Number("42"), masked["count"])
	assert.Equal(t, true, masked["ok"])

	contacts := masked["contacts"].([]any)
	assert.Equal(t, "te***@test.com", contacts[0])
	nested := contacts[1].(map[string]any)
	assert.Equal(t, "02XXXX67", nested["phone"])
	// a name-like key whose value is not a string is walked like any other node
	assert.Equal(t, "110XXXXXX2346", nested["user"].(map[string]any)["id"])
}

func TestDetector_MaskTreeScalarRoot(t *testing.T) {
	d := newTestDetector(t)
	cfg := config.MaskingConfig{MaxDepth: 1}

	assert.Equal(t, "te***@test.com", d.MaskTree("test@test.com", 0, cfg))
	assert.Equal(t, 3.5, d.MaskTree(3.5, 0, cfg))
	assert.Nil(t, d.MaskTree(nil, 0, cfg))
}

func TestDetector_MaskTreeDepthLimit(t *testing.T) {
	d := newTestDetector(t)
	cfg := config.MaskingConfig{MaxDepth: 20}

	var root any = map[string]any{"a": "0812345678"}
	for i := 0; i < 100; i++ {
		root = map[string]any{"inner": root}
	}

	d.MaskTree(root, 0, cfg)

	// Walk down to the leaf: it sits far below the limit and must be untouched.
	node := root.(map[string]any)
	for i := 0; i < 100; i++ {
		node = node["inner"].(map[string]any)
	}
	assert.Equal(t, "0812345678", node["a"])

	shallow := map[string]any{"inner": map[string]any{"a": "0812345678"}}
	d.MaskTree(shallow, 0, cfg)
	assert.Equal(t, "081XXXXX78", shallow["inner"].(map[string]any)["a"])
}

func TestDetector_MaskTreeDepthBoundary(t *testing.T) {
	d := newTestDetector(t)

	// depth 0 object, depth 1 string: processed when MaxDepth is 1
	doc := map[string]any{"a": "0812345678"}
	d.MaskTree(doc, 0, config.MaskingConfig{MaxDepth: 1})
	assert.Equal(t, "081XXXXX78", doc["a"])

	doc = map[string]any{"a": []any{"0812345678"}}
	d.MaskTree(doc, 0, config.MaskingConfig{MaxDepth: 1})
	assert.Equal(t, "0812345678", doc["a"].([]any)[0])
}

func TestDetector_MaskTreeLongStringsPassThrough(t *testing.T) {
	d := newTestDetector(t)
	long := strings.Repeat("x", 5000) + " 0812345678"

	out := d.MaskTree(map[string]any{"blob": long}, 0, config.MaskingConfig{MaxDepth: 5})
	assert.Equal(t, long, out.(map[string]any)["blob"])
}

func TestDetector_MaskJSON(t *testing.T) {
	d := newTestDetector(t)
	cfg := config.MaskingConfig{ExcludeFields: []string{"request_id"}, MaxDepth: 10}

	out, err := d.MaskJSON([]byte(`{"request_id":"0812345678","name":"Somchai","amount":12345678901234567890,"email":"test@test.com"}`), cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"request_id":"0812345678","name":"So***","amount":12345678901234567890,"email":"te***@test.com"}`, string(out))

	_, err = d.MaskJSON([]byte(`{"broken":`), cfg)
	assert.Error(t, err)

	_, err = d.MaskJSON([]byte(`{} {}`), cfg)
	assert.Error(t, err)
}
