// Package stages provides the pipeline executors.
//
// Each executor serves one stage and binds it to its external
// collaborator: the LLM for requirement capture and test case
// generation, the artifact store for samples and JUnit sources, the
// test runner for execution, and Jira for export. Every executor also
// writes its output to the QA database when one is configured.
package stages
