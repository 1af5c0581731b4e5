package qadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fyrsmithlabs/tcgd/internal/results"
	"github.com/fyrsmithlabs/tcgd/internal/testgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS requirements (
	req_id      TEXT PRIMARY KEY,
	text        TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS test_cases (
	test_case_id     TEXT PRIMARY KEY,
	req_id           TEXT NOT NULL REFERENCES requirements(req_id),
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	steps            TEXT NOT NULL,
	expected_results TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS iso_validations (
	validation_id    TEXT PRIMARY KEY,
	test_case_id     TEXT NOT NULL REFERENCES test_cases(test_case_id),
	compliant        INTEGER NOT NULL,
	missing_elements TEXT NOT NULL,
	related_iso_refs TEXT NOT NULL,
	suggestions      TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS test_results (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	req_id       TEXT NOT NULL,
	test_case_id TEXT NOT NULL,
	status       TEXT NOT NULL,
	time_sec     REAL NOT NULL,
	message      TEXT NOT NULL,
	recorded_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_test_cases_req ON test_cases(req_id);
CREATE INDEX IF NOT EXISTS idx_test_results_req ON test_results(req_id);
`

// Store is the SQLite-backed QA record.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("qadb path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening qadb: %w", err)
	}
	// modernc's driver serializes writes itself; one connection keeps
	// SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying qadb schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRequirement stores the classified requirement text.
func (s *Store) RecordRequirement(ctx context.Context, reqID, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO requirements (req_id, text, created_at) VALUES (?, ?, ?)`,
		reqID, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording requirement %s: %w", reqID, err)
	}
	return nil
}

// RecordTestCases stores generated test cases for a request.
func (s *Store) RecordTestCases(ctx context.Context, cases []testgen.TestCase) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording test cases: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, tc := range cases {
		steps, err := json.Marshal(tc.Steps)
		if err != nil {
			return fmt.Errorf("encoding steps for %s: %w", tc.TestCaseID, err)
		}
		expected, err := json.Marshal(tc.ExpectedResults)
		if err != nil {
			return fmt.Errorf("encoding expected results for %s: %w", tc.TestCaseID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO test_cases
			 (test_case_id, req_id, title, description, steps, expected_results, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tc.TestCaseID, tc.ReqID, tc.Title, tc.Description, string(steps), string(expected), now)
		if err != nil {
			return fmt.Errorf("recording test case %s: %w", tc.TestCaseID, err)
		}
	}
	return tx.Commit()
}

// RecordISOValidations stores validation findings.
func (s *Store) RecordISOValidations(ctx context.Context, findings []testgen.ISOResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording iso validations: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, f := range findings {
		missing, err := json.Marshal(f.MissingElements)
		if err != nil {
			return fmt.Errorf("encoding findings for %s: %w", f.TestCaseID, err)
		}
		refs, err := json.Marshal(f.RelatedISORefs)
		if err != nil {
			return fmt.Errorf("encoding findings for %s: %w", f.TestCaseID, err)
		}
		suggestions, err := json.Marshal(f.Suggestions)
		if err != nil {
			return fmt.Errorf("encoding findings for %s: %w", f.TestCaseID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO iso_validations
			 (validation_id, test_case_id, compliant, missing_elements, related_iso_refs, suggestions, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ValidationID, f.TestCaseID, f.Compliant, string(missing), string(refs), string(suggestions), now)
		if err != nil {
			return fmt.Errorf("recording validation %s: %w", f.ValidationID, err)
		}
	}
	return tx.Commit()
}

// RecordResults appends execution verdicts for a request.
func (s *Store) RecordResults(ctx context.Context, reqID string, verdicts []results.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recording results: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, v := range verdicts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO test_results (req_id, test_case_id, status, time_sec, message, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			reqID, v.TestCaseID, string(v.Status), v.TimeSec, v.Message, now)
		if err != nil {
			return fmt.Errorf("recording result for %s: %w", v.TestCaseID, err)
		}
	}
	return tx.Commit()
}

// TestCasesForRequest loads the stored test cases for a request, in
// insertion order.
func (s *Store) TestCasesForRequest(ctx context.Context, reqID string) ([]testgen.TestCase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT test_case_id, req_id, title, description, steps, expected_results
		 FROM test_cases WHERE req_id = ? ORDER BY rowid`, reqID)
	if err != nil {
		return nil, fmt.Errorf("loading test cases for %s: %w", reqID, err)
	}
	defer rows.Close()

	var cases []testgen.TestCase
	for rows.Next() {
		var tc testgen.TestCase
		var steps, expected string
		if err := rows.Scan(&tc.TestCaseID, &tc.ReqID, &tc.Title, &tc.Description, &steps, &expected); err != nil {
			return nil, fmt.Errorf("scanning test case: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &tc.Steps); err != nil {
			return nil, fmt.Errorf("decoding steps for %s: %w", tc.TestCaseID, err)
		}
		if err := json.Unmarshal([]byte(expected), &tc.ExpectedResults); err != nil {
			return nil, fmt.Errorf("decoding expected results for %s: %w", tc.TestCaseID, err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// ResultsForRequest loads the recorded verdicts for a request.
func (s *Store) ResultsForRequest(ctx context.Context, reqID string) ([]results.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT test_case_id, status, time_sec, message
		 FROM test_results WHERE req_id = ? ORDER BY id`, reqID)
	if err != nil {
		return nil, fmt.Errorf("loading results for %s: %w", reqID, err)
	}
	defer rows.Close()

	var verdicts []results.Result
	for rows.Next() {
		var v results.Result
		var status string
		if err := rows.Scan(&v.TestCaseID, &status, &v.TimeSec, &v.Message); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		v.Status = results.Status(status)
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}
