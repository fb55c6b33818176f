package gateway

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Prediction is the optional-field record returned by Invoke. Fields are
// never guaranteed present: agents must check the ok result and treat
// absence as "unknown".
type Prediction struct {
	raw      string
	fields   gjson.Result
	Provider string
	Model    string
}

// NewPrediction parses raw model output into a prediction. Output that is
// not a JSON object (or is wrapped in a code fence) is tolerated: the
// prediction simply has no fields.
func NewPrediction(content string) *Prediction {
	cleaned := stripCodeFence(content)
	parsed := gjson.Parse(cleaned)
	if !parsed.IsObject() {
		parsed = gjson.Result{}
	}
	return &Prediction{raw: content, fields: parsed}
}

// Field returns the named output field as a string. Absent fields, JSON
// nulls and empty strings all report ok=false.
func (p *Prediction) Field(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	v := p.fields.Get(name)
	if !v.Exists() || v.Type == gjson.Null {
		return "", false
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return "", false
	}
	return s, true
}

// Raw returns the unparsed model output.
func (p *Prediction) Raw() string {
	return p.raw
}

func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
