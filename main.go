package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/fang"

	"dev-bootstrap/cmd"
)

// errorHandler prints multi-line errors one styled line at a time.
func errorHandler(w io.Writer, styles fang.Styles, err error) {
	fmt.Fprintf(w, "%s\n", styles.ErrorHeader.String())
	lineStyle := styles.ErrorText.UnsetTransform().UnsetWidth()
	for _, line := range strings.Split(strings.TrimRight(err.Error(), "\n"), "\n") {
		fmt.Fprintf(w, "%s\n", lineStyle.Render(line))
	}
	fmt.Fprintln(w)
}

// main runs the CLI. SIGINT and SIGTERM cancel the context, which kills the running
// command; steps already completed stay in place.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, cmd.GetRootCommand(),
		fang.WithErrorHandler(errorHandler),
	); err != nil {
		stop()
		os.Exit(1)
	}
}
