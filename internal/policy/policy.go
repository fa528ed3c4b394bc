// ABOUTME: Read-only and side-effect policy checks shared by tools and backends.
// ABOUTME: Rejects non-SELECT statements and commands outside the executable allowlist.

package policy

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrViolation indicates an action was rejected by policy before it was executed.
var ErrViolation = errors.New("policy violation")

// CheckSelect returns ErrViolation unless the statement, trimmed and lowercased,
// starts with "select".
func CheckSelect(statement string) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(statement)), "select") {
		return fmt.Errorf("%w: only SELECT queries are allowed", ErrViolation)
	}
	return nil
}

// Allowlist holds the executables that may be run after approval.
type Allowlist struct {
	names map[string]struct{}
}

// NewAllowlist builds an Allowlist from executable names. Entries are compared
// by base name, so "/usr/bin/curl" and "curl" are equivalent.
func NewAllowlist(names ...string) *Allowlist {
	a := &Allowlist{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		a.names[filepath.Base(n)] = struct{}{}
	}
	return a
}

// Check returns ErrViolation if argv is empty or its executable is not allowed.
func (a *Allowlist) Check(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%w: empty command", ErrViolation)
	}
	if a == nil {
		return fmt.Errorf("%w: no commands are allowed", ErrViolation)
	}
	if _, ok := a.names[filepath.Base(argv[0])]; !ok {
		return fmt.Errorf("%w: command %q is not allowed", ErrViolation, argv[0])
	}
	return nil
}
