// Package model defines the language-model contract used by the agent and
// its Gemini implementation.
//
// An Invoker receives the system prompt, the replayed conversation turns and
// the tool declarations, and answers with either text or tool calls. Gemini
// talks to the Gemini API through google.golang.org/genai.
package model
