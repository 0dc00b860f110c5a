// Package llm provides language model backend implementations for the
// gonova runtime. Conversations are exchanged as ordered, role-tagged
// messages plus a set of tool schemas; responses arrive as a stream of
// text and tool-call fragments.
package llm
