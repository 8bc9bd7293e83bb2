package dbman

import (
	"fmt"
	"strings"

	"github.com/quimdev/dbman/internal/core"
)

// sqlitePragmas is appended to every SQLite DSN: wait out lock contention,
// enforce foreign keys, and allow concurrent reads during writes.
// See https://github.com/mattn/go-sqlite3#connection-string
const sqlitePragmas = "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"

// resolveURL translates a canonical connection URL into the registered
// driver name, its native DSN, and the placeholder dialect.
//
// SQLite URLs become path DSNs for mattn/go-sqlite3, preserving the
// scheme-absolute four-slash (UNC) form. Postgres URLs pass through with
// sslmode=disable defaulted when unspecified. Any other scheme is handed
// to sql.Open verbatim under its own name, so callers may register
// additional drivers.
func resolveURL(databaseURL string) (driver, dsn string, dialect core.Dialect, err error) {
	scheme, rest, found := strings.Cut(databaseURL, "://")
	if !found || scheme == "" {
		return "", "", nil, fmt.Errorf("malformed database URL %q", databaseURL)
	}

	switch {
	case strings.EqualFold(scheme, "sqlite"):
		return "sqlite3", sqlitePath(rest) + sqlitePragmas, core.SQLiteDialect{}, nil

	case scheme == "postgres" || scheme == "postgresql":
		url := "postgres://" + rest
		if !strings.Contains(url, "sslmode=") {
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			url += sep + "sslmode=disable"
		}
		return "postgres", url, core.PostgresDialect{}, nil

	default:
		return scheme, databaseURL, core.QuestionDialect{Driver: scheme}, nil
	}
}

// sqlitePath recovers the filesystem path from the URL remainder after
// "sqlite://". The three-slash local form leaves one leading slash, which
// is dropped for Windows drive paths; the four-slash form leaves two,
// which the OS reads as a network share (Windows) or an absolute path
// (POSIX).
func sqlitePath(rest string) string {
	if len(rest) >= 3 && rest[0] == '/' && rest[2] == ':' {
		return rest[1:]
	}
	return rest
}
