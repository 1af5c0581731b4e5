// Package qadb persists the QA audit trail in SQLite.
//
// Each pipeline stage records what it produced: the classified
// requirement, the generated test cases, the ISO validation findings,
// and the execution verdicts. The database is the durable record
// behind the in-memory request state and survives daemon restarts.
package qadb
