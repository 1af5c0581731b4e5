// Package artifacts generates the per-test-case work products of the
// samples_junit stage: sample input data and JUnit source files.
//
// Generated artifacts are written to a BlobStore and referenced by opaque
// store:// paths that later stages and the issue-tracker export resolve.
// The filesystem implementation stands in for the object-store bucket of a
// cloud deployment; sample data is additionally mirrored into the local
// test-resources directory the generated JUnit classes read at run time.
package artifacts
