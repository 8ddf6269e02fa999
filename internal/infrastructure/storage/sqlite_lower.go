package storage

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// sqliteUnicodeLower folds the full Unicode range; the built-in LOWER only
// folds ASCII, so "ZÜRICH" would become "zÜrich".
const sqliteUnicodeLower = "unicode_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteUnicodeLower, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}
