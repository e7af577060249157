package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// receiptSchema constrains the model's JSON reply. Amounts are decimal
// strings; unknown keys are rejected so drifted replies fall back to
// the OCR strategy instead of producing half-parsed records.
const receiptSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "vendor_name":    {"type": "string"},
    "date":           {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
    "total":          {"type": "string", "pattern": "^-?\\d+(\\.\\d{1,2})?$"},
    "subtotal":       {"type": "string", "pattern": "^-?\\d+(\\.\\d{1,2})?$"},
    "tax":            {"type": "string", "pattern": "^-?\\d+(\\.\\d{1,2})?$"},
    "payment_method": {"type": "string"},
    "receipt_number": {"type": "string"},
    "cashier":        {"type": "string"},
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "name":     {"type": "string"},
          "quantity": {"type": "integer", "minimum": 0},
          "price":    {"type": "string", "pattern": "^-?\\d+(\\.\\d{1,2})?$"}
        },
        "required": ["name"]
      }
    },
    "confidence": {"type": "number", "minimum": 0.0, "maximum": 1.0}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("receipt.json", strings.NewReader(receiptSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("receipt.json")
	})
	return schema, schemaErr
}

// ValidateFields checks a sanitized JSON document against the receipt
// schema.
func ValidateFields(doc []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return sch.Validate(v)
}

// ExtractJSONObject strips markdown fences and any prose around the
// first top-level JSON object in an LLM reply. Returns "" when no
// object is present.
func ExtractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}
