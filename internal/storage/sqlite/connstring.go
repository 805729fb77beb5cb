// Package sqlite implements storage.Storage against an embedded SQLite
// database via modernc.org/sqlite (pure Go, no CGO) as the "embedded
// engine" backend.
package sqlite

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ConnString builds a SQLite connection string with the pragmas the core
// needs: busy_timeout (avoids "database is locked" under concurrent
// access) and foreign_keys. Honors VESTIGE_LOCK_TIMEOUT (default 30s).
func ConnString(path string, readOnly bool) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	busy := 30 * time.Second
	if v := strings.TrimSpace(os.Getenv("VESTIGE_LOCK_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			busy = d
		}
	}
	busyMs := int64(busy / time.Millisecond)

	mode := ""
	if readOnly {
		mode = "&mode=ro"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)%s", path, busyMs, mode)
}
