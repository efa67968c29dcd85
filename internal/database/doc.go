// Package database provides the SQL implementation of crawlgraph's store.
//
// CrawlDB stores resources, expressions, links, the get-expression task
// queue and territoire annotations. Two drivers are supported:
//   - SQLite (via modernc.org/sqlite), a single file in the XDG data dir,
//     suited to one machine running the crawler and its workers
//   - PostgreSQL (via github.com/jackc/pgx/v5/stdlib), shared by workers
//     running on several machines
//
// Design decision: Both drivers share one set of statements written with
// "?" placeholders. They are rebound to "$n" for PostgreSQL. The only
// statement that differs is the task claim, which uses
// FOR UPDATE SKIP LOCKED on PostgreSQL so that concurrent workers never
// receive the same task. SQLite gets the same guarantee from its single
// writer connection.
package database
