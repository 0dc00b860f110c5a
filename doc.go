// Package nova is an extensible autonomous agent runtime.
//
// It discovers capability components from a directory of YAML manifests
// (plus a compiled table of native components), projects each active
// component into a tool schema for a language-model backend, and drives a
// conversation loop in which the model may chain tool calls while an
// operator injects interrupt messages between cycles.
//
// The runtime is single-threaded and cooperative: one conversation, one
// component set, no two backend exchanges in flight at once. The Registry
// exclusively owns the active component set and the Orchestrator
// exclusively owns the conversation state.
package nova
