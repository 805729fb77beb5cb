package repository

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/morphexe/vestige/internal/storage"
)

// Row-to-field conversions are defensive: SQLite (via modernc.org/sqlite)
// and Postgres (via pgx) return different native Go types for the same
// logical column (e.g. booleans as int64 vs bool, timestamps as string vs
// time.Time), so every getter accepts the union of shapes either driver
// produces rather than assuming one.

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return ""
	}
}

func asStringPtr(v any) *string {
	s := asString(v)
	if s == "" {
		return nil
	}
	return &s
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(x), 64)
		return f
	default:
		return 0
	}
}

func asInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int:
		return x
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(x)
		return n
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case int:
		return x != 0
	case string:
		return x == "1" || x == "true"
	default:
		return false
	}
}

func asTime(v any) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return &x
	case string:
		if x == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, x)
		if err != nil {
			return nil
		}
		return &t
	case []byte:
		return asTime(string(x))
	default:
		return nil
	}
}

func asStringSlice(v any) []string {
	s := asString(v)
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func asStringMap(v any) map[string]string {
	s := asString(v)
	if s == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func jsonOfMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

func jsonOf(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func floatOf(row storage.Row, col string) float64 { return asFloat(row[col]) }
func stringOf(row storage.Row, col string) string  { return asString(row[col]) }
func intOf(row storage.Row, col string) int        { return asInt(row[col]) }
func boolOf(row storage.Row, col string) bool      { return asBool(row[col]) }
