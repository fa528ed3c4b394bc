// Package command runs approved command lines for side-effecting tools.
//
// Lines are split on whitespace and executed directly; there is no shell, so
// quoting, pipes and substitutions are passed through as literal arguments.
// Only executables on the configured allowlist may run.
package command
