package runner

import (
	"context"
	"strings"
)

// MockExecutor implements Executor for tests. It records every command and answers
// from canned results keyed by command prefix (the longest matching key wins).
type MockExecutor struct {
	Calls   []Command         // All commands executed, in order
	Results map[string]Result // Command.String() prefix -> result
	Errors  map[string]error  // Command.String() prefix -> start error

	// OnExecute runs before a result is chosen. Tests use it to simulate the side
	// effects of an installer (creating the binary a later check looks for).
	OnExecute func(cmd Command)
}

// NewMockExecutor creates an empty mock; unmatched commands succeed with no output.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Results: make(map[string]Result),
		Errors:  make(map[string]error),
	}
}

// Execute records cmd and returns the canned answer.
func (m *MockExecutor) Execute(ctx context.Context, cmd Command) (Result, error) {
	m.Calls = append(m.Calls, cmd)
	if m.OnExecute != nil {
		m.OnExecute(cmd)
	}

	key := cmd.String()
	if pattern, ok := longestPrefix(key, m.Errors); ok {
		return Result{ExitCode: -1}, m.Errors[pattern]
	}
	if pattern, ok := longestPrefix(key, m.Results); ok {
		return m.Results[pattern], nil
	}
	return Result{}, nil
}

// Commands returns the rendered form of every recorded call.
func (m *MockExecutor) Commands() []string {
	out := make([]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, c.String())
	}
	return out
}

// Reset clears recorded calls but keeps canned answers.
func (m *MockExecutor) Reset() {
	m.Calls = nil
}

func longestPrefix[V any](key string, patterns map[string]V) (string, bool) {
	best, found := "", false
	for p := range patterns {
		if strings.HasPrefix(key, p) && (!found || len(p) > len(best)) {
			best, found = p, true
		}
	}
	return best, found
}
