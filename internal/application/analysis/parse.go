package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// ErrUnparseable is returned by ParseResponse when the model output is not
// JSON, even after optional repair.
var ErrUnparseable = errors.New("model response is not valid JSON")

// SchemaError lists every way a parseable response deviates from the
// documented shape.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "response does not match schema: " + strings.Join(e.Violations, "; ")
}

// stripFences removes a surrounding markdown code fence such as ```json.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseResponse turns raw model text into a FileAnalysis for fileName.
// Raw text must be JSON as-is; with repair set, code fences are stripped and
// a repair pass runs before giving up. It returns ErrUnparseable when no JSON
// can be recovered, and a non-nil
// analysis together with a *SchemaError when the JSON is off-shape.
func ParseResponse(fileName, raw string, repair bool) (*domain.FileAnalysis, error) {
	text := raw
	if !json.Valid([]byte(text)) {
		if !repair {
			return nil, ErrUnparseable
		}
		text = stripFences(raw)
		if !json.Valid([]byte(text)) {
			fixed, err := jsonrepair.JSONRepair(text)
			if err != nil || !json.Valid([]byte(fixed)) {
				return nil, ErrUnparseable
			}
			text = fixed
		}
	}

	var doc bytes.Buffer
	if err := json.Compact(&doc, []byte(text)); err != nil {
		return nil, ErrUnparseable
	}

	fa := &domain.FileAnalysis{FileName: fileName, Issues: []domain.Issue{}, Document: json.RawMessage(doc.Bytes())}
	violations := decodeIssues(doc.Bytes(), fa)
	if len(violations) > 0 {
		return fa, &SchemaError{Violations: violations}
	}
	return fa, nil
}

// decodeIssues fills fa.Issues from the document. Only issues of a known
// kind are kept; every deviation is reported.
func decodeIssues(doc []byte, fa *domain.FileAnalysis) []string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return []string{"top-level value is not an object"}
	}

	var violations []string
	rawResults, ok := top["results"]
	if !ok {
		return append(violations, `missing "results"`)
	}

	var issuesRaw json.RawMessage
	var results map[string]json.RawMessage
	if err := json.Unmarshal(rawResults, &results); err != nil {
		violations = append(violations, `"results" is not an object`)
		// lenient: results given directly as the issue list
		issuesRaw = rawResults
	} else if r, ok := results["issues"]; ok {
		issuesRaw = r
	} else {
		return append(violations, `missing "results.issues"`)
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(issuesRaw, &items); err != nil {
		return append(violations, "issues is not a list of objects")
	}

	for i, item := range items {
		issue, probs := decodeIssue(item)
		for _, p := range probs {
			violations = append(violations, fmt.Sprintf("issue %d: %s", i, p))
		}
		if issue.Kind.Valid() {
			fa.Issues = append(fa.Issues, issue)
		}
	}
	return violations
}

func decodeIssue(item map[string]json.RawMessage) (domain.Issue, []string) {
	var issue domain.Issue
	var probs []string

	var kind string
	if raw, ok := item["type"]; !ok {
		probs = append(probs, `missing "type"`)
	} else if err := json.Unmarshal(raw, &kind); err != nil {
		probs = append(probs, `"type" is not a string`)
	} else {
		issue.Kind = domain.IssueKind(strings.ToLower(strings.TrimSpace(kind)))
		if !issue.Kind.Valid() {
			probs = append(probs, fmt.Sprintf("unknown type %q", kind))
		}
	}

	if raw, ok := item["line"]; !ok {
		probs = append(probs, `missing "line"`)
	} else if line, ok := decodeLine(raw); ok {
		issue.Line = line
	} else {
		probs = append(probs, fmt.Sprintf(`"line" is not a number: %s`, string(raw)))
	}

	for _, f := range []struct {
		key string
		dst *string
	}{{"description", &issue.Description}, {"suggestion", &issue.Suggestion}} {
		raw, ok := item[f.key]
		if !ok {
			probs = append(probs, fmt.Sprintf("missing %q", f.key))
			continue
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			probs = append(probs, fmt.Sprintf("%q is not a string", f.key))
		}
	}
	return issue, probs
}

// decodeLine accepts 12, 12.0 and "12". Fractional or out of range
// numbers are rejected.
func decodeLine(raw json.RawMessage) (int, bool) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			return 0, false
		}
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32); err == nil {
			return int(n), true
		}
	}
	return 0, false
}
