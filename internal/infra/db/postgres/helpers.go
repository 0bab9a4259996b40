package postgres

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-review/internal/domain/analysis"
)

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

func decodeResult(b []byte) ([]analysis.FileAnalysis, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var out []analysis.FileAnalysis
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// detailsJSON keeps JSONB inserts valid: empty becomes NULL, non-JSON is wrapped.
func detailsJSON(details string) any {
	if strings.TrimSpace(details) == "" {
		return nil
	}
	if !json.Valid([]byte(details)) {
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
	v := t.Time.UTC()
	return &v
}
