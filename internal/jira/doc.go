// Package jira exports test cases to a Jira project.
//
// Each test case maps to one issue keyed by its test case ID. Export
// searches the project by JQL first: an existing issue gets a run
// summary comment, otherwise a new issue is created. The client talks
// to the Jira REST v2 API with basic auth.
package jira
