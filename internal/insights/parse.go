package insights

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-analytics/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// errNoArray is returned when the response holds no JSON array at all.
var errNoArray = errors.New("no JSON array in response")

const insightSchema = `{
  "type": "object",
  "required": ["type", "title", "message", "severity"],
  "properties": {
    "type":       {"enum": ["warning", "tip", "pattern", "opportunity"]},
    "title":      {"type": "string", "minLength": 1},
    "message":    {"type": "string", "minLength": 1},
    "severity":   {"enum": ["low", "medium", "high"]},
    "actionable": {"type": "boolean"}
  }
}`

var schema = jsonschema.MustCompileString("insight.json", insightSchema)

// parseInsights extracts the first JSON array from raw model output and keeps
// only the elements that have the Insight shape. A malformed array is an error;
// an array without valid elements is not.
func parseInsights(raw string) ([]domain.Insight, int, error) {
	clean := cleanModelJSON(raw)

	start := strings.Index(clean, "[")
	if start == -1 {
		return nil, 0, errNoArray
	}

	// Decode exactly one array value; anything after it is ignored.
	dec := json.NewDecoder(strings.NewReader(clean[start:]))
	var elems []json.RawMessage
	if err := dec.Decode(&elems); err != nil {
		return nil, 0, fmt.Errorf("decoding insight array: %w", err)
	}

	var (
		out     []domain.Insight
		dropped int
	)
	for _, elem := range elems {
		ins, ok := validInsight(elem)
		if !ok {
			dropped++
			continue
		}
		out = append(out, ins)
	}
	return out, dropped, nil
}

func validInsight(elem json.RawMessage) (domain.Insight, bool) {
	var generic any
	if err := json.Unmarshal(elem, &generic); err != nil {
		return domain.Insight{}, false
	}
	if err := schema.Validate(generic); err != nil {
		return domain.Insight{}, false
	}

	var ins domain.Insight
	if err := json.NewDecoder(bytes.NewReader(elem)).Decode(&ins); err != nil {
		return domain.Insight{}, false
	}
	ins.Title = strings.TrimSpace(ins.Title)
	ins.Message = strings.TrimSpace(ins.Message)
	return ins, ins.Valid()
}

// cleanModelJSON strips Markdown code fences the model may wrap its answer in.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return strings.Trim(s, "`")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
