// Package pipeline implements the staged requirement-to-test-case pipeline
// orchestrator.
//
// A pipeline run is tracked as a Request: an identifier, the stage it is
// currently waiting on, an accumulated artifact bag, and an append-only
// history of human decisions. The stage sequence is fixed and defined by the
// Registry; each stage declares the artifacts it requires, the artifacts it
// produces, and its successor. Stage work itself is delegated to Executor
// implementations, one per stage, which call out to external collaborators
// (language model, object store, test runner, issue tracker).
//
// The Orchestrator is the only writer of Request state. Every Advance call
// is a short-lived unit of work: it validates the caller's declared stage
// against the Request, applies an explicit human decision (continue or
// stop), runs the matching executor outside of any store lock, and commits
// the result atomically. A failed executor leaves the Request resumable at
// the same stage; stop and natural completion are distinct terminal states.
//
// Request state lives in a Store. The in-memory implementation is suitable
// for single-process deployments; durable QA artifacts (requirements, test
// cases, results) are persisted separately by the executors.
package pipeline
