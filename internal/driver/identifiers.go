package driver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/johndauphine/table-transfer/internal/errs"
)

// MaxIdentifierLength is the longest table or column name accepted.
const MaxIdentifierLength = 128

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#]*$`)

// ValidateIdentifier checks a single table or column name against the
// allow-list. Names that fail are never interpolated into SQL.
func ValidateIdentifier(name string) error {
	if name == "" {
		return errs.Newf(errs.KindSchema, "validate identifier", "", "empty identifier")
	}
	if len(name) > MaxIdentifierLength {
		return errs.Newf(errs.KindSchema, "validate identifier", name,
			"longer than %d characters", MaxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return errs.Newf(errs.KindSchema, "validate identifier", name,
			"must match %s", identifierPattern.String())
	}
	return nil
}

// SplitQualified validates a table name with at most one schema qualifier
// and returns its parts.
func SplitQualified(name string) (schema, table string, err error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	switch len(parts) {
	case 1:
		table = parts[0]
	case 2:
		schema, table = parts[0], parts[1]
		if err := ValidateIdentifier(schema); err != nil {
			return "", "", err
		}
	default:
		return "", "", errs.New(errs.KindSchema, "validate identifier", name,
			fmt.Errorf("at most one schema qualifier is allowed"))
	}
	if err := ValidateIdentifier(table); err != nil {
		return "", "", err
	}
	return schema, table, nil
}
