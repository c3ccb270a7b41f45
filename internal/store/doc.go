// Package store persists agent state in SQLite at the configured state file.
//
// This package manages:
//   - Database connection with WAL mode and busy timeout
//   - The pending update record written before an update reboot
//   - The outbox of publications awaiting redelivery after a reconnect
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - The agent is the only writer; the pool is capped at one connection
//   - Both tables hold a handful of rows at most
//
// Usage:
//
//	st, err := store.Open(cfg.StateFile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
// The schema is created idempotently at open. There is no migration
// framework: the agent owns the whole file and the two tables are stable.
package store
