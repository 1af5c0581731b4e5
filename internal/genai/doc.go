// Package genai wraps the generative language model used by the intake
// router and the test case generator.
//
// The client speaks any OpenAI-compatible completion endpoint via
// langchaingo, so the provider is a deployment choice (a Gemini
// OpenAI-compatibility endpoint by default). Calls are rate limited and
// bounded by a per-call timeout; there is no retry here — retry is a caller
// decision.
package genai
