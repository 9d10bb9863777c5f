package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
)

// CLI models the two positional arguments: the database path and a command,
// which is either a dot-command or a SELECT statement.
type CLI struct {
	Database string `arg:"" help:"Path to the SQLite database file."`
	Command  string `arg:"" help:"'.dbinfo', '.tables' or a SELECT statement."`
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("LITEQUERY_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// runProgram parses the arguments and executes the command; split out of
// main so tests can drive the full pipeline
func runProgram(args []string, out *os.File) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("litequery"),
		kong.Description("Read-only query engine over SQLite database files."))
	if err != nil {
		return err
	}
	if _, err := parser.Parse(args[1:]); err != nil {
		return err
	}

	logger := newLogger()
	engine, err := NewEngine(cli.Database, NewConsoleFormatter(out), logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	return engine.ExecuteCommand(cli.Command)
}

func main() {
	if err := runProgram(os.Args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
