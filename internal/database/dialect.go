package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Driver names a supported SQL backend.
type Driver string

const (
	// DriverSQLite stores everything in a local SQLite file.
	DriverSQLite Driver = "sqlite"

	// DriverPostgres stores everything in a shared PostgreSQL database.
	DriverPostgres Driver = "postgres"
)

// ParseDriver converts a user-supplied driver name.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, s)
	}
}

// dialect holds what differs between SQLite and PostgreSQL.
type dialect struct {
	driver Driver
}

func dialectFor(driver Driver) dialect {
	if driver == DriverPostgres {
		return dialect{driver: DriverPostgres}
	}
	return dialect{driver: DriverSQLite}
}

// rebind rewrites "?" placeholders to "$1", "$2", ... for PostgreSQL.
// Statements must not contain a literal question mark.
func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// pickTasksQuery claims unclaimed tasks and returns them.
// Arguments: claimed_at, limit.
func (d dialect) pickTasksQuery() string {
	lock := ""
	if d.driver == DriverPostgres {
		lock = " FOR UPDATE SKIP LOCKED"
	}
	return `UPDATE get_expression_tasks SET claimed_at = ?
	WHERE id IN (
		SELECT id FROM get_expression_tasks
		WHERE claimed_at IS NULL
		ORDER BY id
		LIMIT ?` + lock + `
	)
	RETURNING id, resource_id, territoire_id, depth`
}

// schema returns the statements that create the tables.
func (d dialect) schema() []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ref := "INTEGER"
	if d.driver == DriverPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
		ref = "BIGINT"
	}

	return []string{
		// Expressions hold the content extracted from a fetched page.
		`CREATE TABLE IF NOT EXISTS expressions (
			id ` + pk + `,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			full_html TEXT NOT NULL DEFAULT '',
			main_html TEXT NOT NULL DEFAULT '',
			main_text TEXT NOT NULL DEFAULT '',
			meta_description TEXT NOT NULL DEFAULT '',
			meta_json TEXT NOT NULL DEFAULT '{}',
			references_json TEXT NOT NULL DEFAULT '[]',
			aliases_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,

		// Resources are URL-identified nodes.
		`CREATE TABLE IF NOT EXISTS resources (
			id ` + pk + `,
			url TEXT NOT NULL UNIQUE,
			alias_of ` + ref + ` REFERENCES resources(id),
			expression_id ` + ref + ` REFERENCES expressions(id),
			other_error TEXT NOT NULL DEFAULT '',
			http_status INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resources_alias ON resources(alias_of)`,

		// Links are directed edges between resources.
		`CREATE TABLE IF NOT EXISTS links (
			id ` + pk + `,
			source_id ` + ref + ` NOT NULL REFERENCES resources(id),
			target_id ` + ref + ` NOT NULL REFERENCES resources(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id)`,

		// Tasks are the durable fetch queue. claimed_at is a unix
		// timestamp, NULL while the task is available.
		`CREATE TABLE IF NOT EXISTS get_expression_tasks (
			id ` + pk + `,
			resource_id ` + ref + ` NOT NULL REFERENCES resources(id),
			territoire_id ` + ref + ` NOT NULL,
			depth INTEGER NOT NULL DEFAULT 0,
			claimed_at ` + ref + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_claimed ON get_expression_tasks(claimed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_territoire ON get_expression_tasks(territoire_id)`,

		// Annotations are territoire-scoped judgments. approved is NULL
		// while undecided.
		`CREATE TABLE IF NOT EXISTS annotations (
			resource_id ` + ref + ` NOT NULL REFERENCES resources(id),
			territoire_id ` + ref + ` NOT NULL,
			values_json TEXT,
			approved BOOLEAN,
			PRIMARY KEY (resource_id, territoire_id)
		)`,
	}
}
