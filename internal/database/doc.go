// Package database provides the PostgreSQL connection pool used by the
// recorder, and the schema of the table it writes to.
package database
