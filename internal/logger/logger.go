package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color" // Import the fatih/color package for colored console output
)

// Logger mirrors every line to standard output and to an append-only log file.
//
// Level helpers keep the setup-tool convention of carrying the level tag inside the
// format string ("[INFO] Installed %s\n"). The console copy is colorized per level,
// the file copy is written as plain text so the log stays greppable.
//
// A Logger is not safe for concurrent use; the bootstrap pass is strictly sequential,
// so call order is log order.
type Logger struct {
	stdout io.Writer
	file   *os.File
	path   string
	debug  bool

	// degraded is set once the log file could not be opened or written.
	// From then on only stdout receives output.
	degraded bool

	info *color.Color
	warn *color.Color
	errc *color.Color
	dbg  *color.Color
}

// New opens (or creates) the log file at path in append mode and returns a Logger
// writing to it and to stdout. A nil stdout means os.Stdout.
//
// Failing to open the file is not fatal: the logger degrades to stdout-only and
// prints a single warning so the run can continue.
func New(path string, debug bool, stdout io.Writer) *Logger {
	if stdout == nil {
		stdout = os.Stdout
	}

	l := &Logger{
		stdout: stdout,
		path:   path,
		debug:  debug,
		info:   color.New(color.FgGreen),
		warn:   color.New(color.FgHiMagenta),
		errc:   color.New(color.FgRed),
		dbg:    color.New(color.FgCyan),
	}

	if path == "" {
		l.degrade(fmt.Errorf("no log file configured"))
		return l
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.degrade(err)
		return l
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.degrade(err)
		return l
	}
	l.file = f

	l.toFile(fmt.Sprintf("=== dev-bootstrap run started %s ===\n", time.Now().Format(time.RFC3339)))
	return l
}

// Path returns the log file path, even when the logger has degraded.
func (l *Logger) Path() string {
	return l.path
}

// DebugEnabled reports whether Debug output is printed.
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

// Log writes an uncolored line to stdout and the log file.
// A trailing newline is added when the message lacks one.
func (l *Logger) Log(format string, a ...any) {
	msg := line(format, a...)
	_, _ = io.WriteString(l.stdout, msg)
	l.toFile(msg)
}

// Info logs informational messages in green.
func (l *Logger) Info(format string, a ...any) {
	l.print(l.info, format, a...)
}

// Warn logs warnings in bright magenta.
func (l *Logger) Warn(format string, a ...any) {
	l.print(l.warn, format, a...)
}

// Error logs errors in red.
func (l *Logger) Error(format string, a ...any) {
	l.print(l.errc, format, a...)
}

// Debug logs in cyan when debug output is enabled, otherwise it is a no-op
// for both sinks.
func (l *Logger) Debug(format string, a ...any) {
	if !l.debug {
		return
	}
	l.print(l.dbg, format, a...)
}

// Write appends raw bytes (captured command output) to the log file.
// Output reaches the console only in debug mode, where it is useful for diagnosis.
func (l *Logger) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if l.debug {
		_, _ = l.stdout.Write(p)
	}
	msg := string(p)
	if msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	l.toFile(msg)
	return len(p), nil
}

// Close releases the log file handle.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) print(c *color.Color, format string, a ...any) {
	msg := line(format, a...)
	_, _ = c.Fprint(l.stdout, msg)
	l.toFile(msg)
}

func (l *Logger) toFile(msg string) {
	if l.file == nil {
		return
	}
	if _, err := l.file.WriteString(msg); err != nil {
		_ = l.file.Close()
		l.file = nil
		l.degrade(err)
	}
}

// degrade switches to stdout-only and warns exactly once.
func (l *Logger) degrade(err error) {
	if l.degraded {
		return
	}
	l.degraded = true
	_, _ = l.warn.Fprintf(l.stdout, "[WARN] Log file %q unavailable, logging to stdout only: %v\n", l.path, err)
}

func line(format string, a ...any) string {
	msg := format
	if len(a) > 0 {
		msg = fmt.Sprintf(format, a...)
	}
	if msg == "" || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	return msg
}
