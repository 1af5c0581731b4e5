// Package testgen generates test cases from requirement text and checks
// them against medical-device documentation standards.
//
// Generation is model-backed: the requirement is rendered into a prompt, the
// completion is parsed as a JSON array of test cases, and a deterministic
// fallback case is produced when the model returns something unusable. The
// ISO check is heuristic and local; it flags structural gaps (missing steps,
// missing expected results) rather than judging domain correctness.
package testgen
