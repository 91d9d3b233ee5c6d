package driver

import (
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"
)

// TimestampLayout is how time values are rendered into text columns.
const TimestampLayout = "2006-01-02 15:04:05.999999999"

// TextValue renders a scanned value for a permissive text column.
// NULL stays nil; byte slices that are not valid UTF-8 are kept as-is.
func TextValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return x
	case time.Time:
		return x.Format(TimestampLayout)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return v
}

// TextRow applies TextValue to every value of row.
func TextRow(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = TextValue(v)
	}
	return out
}
