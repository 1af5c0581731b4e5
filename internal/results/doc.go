// Package results parses JUnit execution reports.
//
// The stage runner executes the generated sources with Maven Surefire
// and leaves one XML report per test class. This package maps those
// reports back to test case IDs through the TC_<id>Test class naming
// convention and reduces each run to a PASS, FAIL, ERROR, or SKIPPED
// verdict.
package results
