package mysql

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// encodeResult returns nil for jobs without a result so the column stays NULL.
func encodeResult(r []analysis.FileAnalysis) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeResult(s sql.NullString) ([]analysis.FileAnalysis, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var out []analysis.FileAnalysis
	if err := json.Unmarshal([]byte(s.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// detailsOrEmpty ensures details_json is valid JSON; invalid input is wrapped as a string field
func detailsOrEmpty(details string) string {
	if strings.TrimSpace(details) == "" {
		return "{}"
	}
	var js any
	if json.Unmarshal([]byte(details), &js) != nil {
		b, _ := json.Marshal(map[string]string{"raw": details})
		return string(b)
	}
	return details
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
