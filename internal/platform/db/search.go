package db

import (
	"database/sql/driver"
	"strings"

	gosqlite "github.com/glebarez/go-sqlite"
)

// sqliteLowerFunc folds case with Go's Unicode tables. SQLite's LOWER only
// folds ASCII, which would disagree with ContainsPattern on terms like "ÉMILE".
const sqliteLowerFunc = "unicode_lower"

func init() {
	gosqlite.MustRegisterDeterministicScalarFunction(sqliteLowerFunc, 1, unicodeLower)
}

func unicodeLower(_ *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
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

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a lower-cased LIKE pattern matching term as a literal substring.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

// ContainsExpr returns a case-insensitive substring match on column for the
// given dialect. Pair it with ContainsPattern.
func ContainsExpr(dialect, column string) string {
	lower := "LOWER"
	if dialect != DialectPostgres {
		lower = sqliteLowerFunc
	}
	return lower + "(" + column + `) LIKE ? ESCAPE '\'`
}
