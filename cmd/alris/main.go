// File: cmd/alris/main.go
/*
Copyright © 2025 Kyle McAllister (xkilldash9x@proton.me)
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/xkilldash9x/alris-cli/cmd"
	"github.com/xkilldash9x/alris-cli/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
    _    _      _
   / \  | |_ __(_)___
  / _ \ | | '__| / __|     "Tell me what you need.
 / ___ \| | |  | \__ \      I'll do the clicking."
/_/   \_\_|_|  |_|___/

 Type a request, a subcommand (history, config show, ...), or 'exit'.

`

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
	// Allows running interactive lines without a real command tree.
	runLine = func(ctx context.Context, args []string) error {
		root := cmd.NewRootCommand()
		root.SetArgs(args)
		return root.ExecuteContext(ctx)
	}
)

// subcommands are the first words that run as CLI commands instead of requests.
var subcommands = map[string]bool{
	"run": true, "serve": true, "mcp": true, "history": true,
	"config": true, "version": true, "help": true,
}

// main is the entry point of the application.
func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// If arguments are passed, execute the command directly and exit.
	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0)
			} else {
				osExit(1)
			}
		}
		return
	}

	// -- Interactive Mode --
	fmt.Print(banner)
	if err := repl(ctx, os.Stdin, os.Stdout, uuid.NewString()); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
	fmt.Println("Goodbye.")
}

// repl reads lines until EOF or exit. Requests share one conversation thread.
func repl(ctx context.Context, in io.Reader, out io.Writer, threadID string) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "alris > ")
		if !scanner.Scan() {
			break // Exit on EOF (Ctrl+D)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		executeInteractiveLine(ctx, out, interactiveArgs(line, threadID))
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// interactiveArgs turns a line into command arguments. Anything that is not a
// subcommand is a request on the session thread.
func interactiveArgs(line, threadID string) []string {
	fields := strings.Fields(line)
	if subcommands[fields[0]] {
		return fields
	}
	return []string{"run", "--thread", threadID, line}
}

func executeInteractiveLine(ctx context.Context, out io.Writer, args []string) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(out, "Error: Command panicked: %v\n", r)
		}
	}()
	if err := runLine(ctx, args); err != nil && !errors.Is(err, context.Canceled) {
		// In interactive mode, we print the error but do not exit the shell.
		fmt.Fprintln(out, "Error:", err)
	}
}

// handlePanic writes the panic and stack to panic.log and exits non-zero.
func handlePanic() {
	if r := recover(); r != nil {
		observability.Sync()

		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
		if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(1)
			return // Return facilitates testing when osExit is mocked.
		}

		fmt.Fprintf(os.Stderr, "\nAlris crashed. Details logged to %s\n", panicLogFile)
		osExit(1)
	}
}
