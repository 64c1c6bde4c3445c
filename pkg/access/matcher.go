// Package access resolves a caller's allowed tool-group set from policy
// documents matched against token claims (spec §4.5).
package access

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Operator is one of the closed set of comparison operators a ClaimMatcher
// may use.
type Operator string

// Operators.
const (
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "notEquals"
	OpIn         Operator = "in"
	OpNotIn      Operator = "notIn"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
	OpMatches    Operator = "matches"
)

// ClaimMatcher tests one jsonPath/operator/value triple against a claims
// document. jsonPath uses gjson's dot-notation (with `.0`-style array
// indexing) — the same path language the pack's haasonsaas-nexus module
// graph already ships (`github.com/tidwall/gjson`, present there as an
// unused indirect dependency) and which matches the spec's "dot-notation
// with array indexing" requirement exactly, so we exercise it directly
// rather than hand-rolling a path walker.
type ClaimMatcher struct {
	JSONPath string   `json:"jsonPath"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Match evaluates the matcher against a canonical JSON claims document.
func (m ClaimMatcher) Match(claimsJSON []byte) (bool, error) {
	result := gjson.GetBytes(claimsJSON, m.JSONPath)

	switch m.Operator {
	case OpEquals:
		return compareEqual(result, m.Value), nil
	case OpNotEquals:
		return !compareEqual(result, m.Value), nil
	case OpIn:
		values, err := asSlice(m.Value)
		if err != nil {
			return false, err
		}
		for _, v := range values {
			if compareEqual(result, v) {
				return true, nil
			}
		}
		return false, nil
	case OpNotIn:
		values, err := asSlice(m.Value)
		if err != nil {
			return false, err
		}
		for _, v := range values {
			if compareEqual(result, v) {
				return false, nil
			}
		}
		return true, nil
	case OpContains:
		return strings.Contains(result.String(), fmt.Sprint(m.Value)), nil
	case OpStartsWith:
		return strings.HasPrefix(result.String(), fmt.Sprint(m.Value)), nil
	case OpEndsWith:
		return strings.HasSuffix(result.String(), fmt.Sprint(m.Value)), nil
	case OpMatches:
		pattern, ok := m.Value.(string)
		if !ok {
			return false, fmt.Errorf("access: matches operator requires a string pattern")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("access: invalid regex %q: %w", pattern, err)
		}
		return re.MatchString(result.String()), nil
	default:
		return false, fmt.Errorf("access: unknown operator %q", m.Operator)
	}
}

func compareEqual(result gjson.Result, want any) bool {
	switch w := want.(type) {
	case string:
		return result.String() == w
	case bool:
		return result.Type == gjson.True && w || result.Type == gjson.False && !w
	case float64:
		return result.Num == w
	case int:
		return result.Num == float64(w)
	default:
		return result.String() == fmt.Sprint(want)
	}
}

func asSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, nil
	default:
		return nil, fmt.Errorf("access: in/notIn operator requires a list value, got %T", v)
	}
}
