package runner

import (
	"strings"
)

// Command describes one external process.
//
// Most steps build a structured argv command with Exec. Installer one-liners published by
// third parties (Homebrew, oh-my-zsh, nvm, rustup) are kept as opaque scripts built with
// Shell; they are evaluated by bash with pipefail so a failing download inside a pipeline
// is reported instead of being masked by the last command's status.
type Command struct {
	Name   string   // Program to execute (ignored when Script is set)
	Args   []string // Program arguments
	Script string   // Opaque shell script evaluated by bash -c
	Env    []string // Extra KEY=VALUE pairs appended to the inherited environment
	Dir    string   // Working directory; empty means the current one

	// Interactive commands may prompt (sudo, chsh); their output is shown on the console
	// while it runs, not only written to the log afterwards.
	Interactive bool
}

// Exec returns a structured command for name with args.
func Exec(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Shell returns a command evaluating script with bash.
func Shell(script string) Command {
	return Command{Script: script}
}

// WithEnv returns a copy of c with extra environment entries.
func (c Command) WithEnv(env ...string) Command {
	c.Env = append(append([]string(nil), c.Env...), env...)
	return c
}

// WithConsole returns a copy of c marked Interactive.
func (c Command) WithConsole() Command {
	c.Interactive = true
	return c
}

// Argv returns the program and arguments handed to the operating system.
func (c Command) Argv() (string, []string) {
	if c.Script != "" {
		return "bash", []string{"-o", "pipefail", "-c", c.Script}
	}
	return c.Name, c.Args
}

// String renders the command the way a user would type it; it is what the log shows.
func (c Command) String() string {
	var b strings.Builder
	for _, kv := range c.Env {
		b.WriteString(kv)
		b.WriteByte(' ')
	}
	if c.Script != "" {
		b.WriteString(c.Script)
		return b.String()
	}
	b.WriteString(quote(c.Name))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

// quote single-quotes arguments containing shell metacharacters.
func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]{}~#!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
