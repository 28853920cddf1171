// Package signals turns selected documents into a bounded list of typed,
// structured claims about the company.
package signals

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Signal types the backend is asked to use. Other strings are kept as given.
const (
	TypeFinancial      = "financial"
	TypeStrategy       = "strategy"
	TypeMarkets        = "markets"
	TypeRisks          = "risks"
	TypeProduct        = "product"
	TypeLeadership     = "leadership"
	TypeSustainability = "sustainability"
	TypeSummary        = "summary"
)

// ValueFields are the documented keys of Signal.Value. Anything else returned
// by the backend is dropped.
var ValueFields = []string{"headline", "metric", "value", "unit", "topic", "summary", "note", "period", "region"}

// Value holds the optional named fields of a signal.
type Value map[string]string

// Signal is one structured claim. Confidence is always within [0, 1].
type Signal struct {
	Type       string  `json:"type"`
	Value      Value   `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Key is the dedupe identity: lower-cased headline and topic.
func (s Signal) Key() [2]string {
	return [2]string{
		strings.ToLower(strings.TrimSpace(s.Value["headline"])),
		strings.ToLower(strings.TrimSpace(s.Value["topic"])),
	}
}

// Dedupe keeps the first signal per Key and truncates to limit. A limit of
// zero or less keeps everything.
func Dedupe(in []Signal, limit int) []Signal {
	seen := make(map[[2]string]struct{}, len(in))
	out := make([]Signal, 0, len(in))
	for _, s := range in {
		k := s.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

type rawEnvelope struct {
	Signals []json.RawMessage `json:"signals"`
}

type rawSignal struct {
	Type       json.RawMessage            `json:"type"`
	Value      map[string]json.RawMessage `json:"value"`
	Confidence json.RawMessage            `json:"confidence"`
}

// Parse decodes a backend response of the form {"signals": [...]}. A reply
// wrapped in a Markdown code fence is unwrapped first. Malformed input yields
// no signals; entries that are not objects are skipped. Every returned signal
// has been through validation.
func Parse(content string) []Signal {
	var env rawEnvelope
	if err := json.Unmarshal([]byte(stripFence(content)), &env); err != nil {
		return nil
	}
	out := make([]Signal, 0, len(env.Signals))
	for _, raw := range env.Signals {
		var rs rawSignal
		if err := json.Unmarshal(raw, &rs); err != nil {
			continue
		}
		out = append(out, Signal{
			Type:       coerceType(rs.Type),
			Value:      coerceValue(rs.Value),
			Confidence: coerceConfidence(rs.Confidence),
		})
	}
	return out
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json") up to the first newline
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

func coerceType(raw json.RawMessage) string {
	t := strings.ToLower(strings.TrimSpace(scalarString(raw)))
	if t == "" {
		return TypeSummary
	}
	return t
}

// coerceConfidence accepts numbers and numeric strings, defaults to 0.5 and
// clamps to [0, 1].
func coerceConfidence(raw json.RawMessage) float64 {
	c := 0.5
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		c = f
	} else if s := scalarString(raw); s != "" {
		if p, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			c = p
		}
	}
	if c != c { // NaN
		c = 0.5
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func coerceValue(in map[string]json.RawMessage) Value {
	v := Value{}
	for _, k := range ValueFields {
		raw, ok := in[k]
		if !ok {
			continue
		}
		if s := strings.TrimSpace(scalarString(raw)); s != "" {
			v[k] = s
		}
	}
	return v
}

// scalarString renders a JSON scalar as text. Null and absent values are
// empty; arrays and objects keep their compact JSON form.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var anyv interface{}
	if err := json.Unmarshal(raw, &anyv); err != nil {
		return ""
	}
	switch x := anyv.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return string(raw)
	}
}
