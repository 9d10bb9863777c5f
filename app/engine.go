package main

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Engine dispatches the supported commands against one open database
type Engine struct {
	db        *Database
	executor  *Executor
	formatter *ConsoleFormatter
	logger    *slog.Logger
	timeout   time.Duration
}

// NewEngine opens a database and wires up the command pipeline
func NewEngine(dbPath string, formatter *ConsoleFormatter, logger *slog.Logger, options ...DatabaseOption) (*Engine, error) {
	config := DefaultDatabaseConfig()
	for _, opt := range options {
		opt(config)
	}

	db, err := NewDatabase(dbPath, options...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		db:        db,
		executor:  NewExecutor(db),
		formatter: formatter,
		logger:    logger,
		timeout:   time.Duration(config.QueryTimeout) * time.Millisecond,
	}, nil
}

// Close closes the engine's database
func (engine *Engine) Close() error {
	return engine.db.Close()
}

// ExecuteCommand runs one command: a dot-command or a SELECT statement
func (engine *Engine) ExecuteCommand(command string) error {
	ctx, cancel := context.WithTimeout(context.Background(), engine.timeout)
	defer cancel()

	switch {
	case command == ".dbinfo":
		return engine.handleDBInfo(ctx)
	case command == ".tables":
		return engine.handleTables(ctx)
	case strings.HasPrefix(command, "."):
		return NewDatabaseError("dispatch_command", ErrUnsupportedQuery, map[string]interface{}{
			"command": command,
		})
	default:
		return engine.handleSQL(ctx, command)
	}
}

// handleDBInfo prints the page size and the number of user tables
func (engine *Engine) handleDBInfo(ctx context.Context) error {
	tableCount, err := engine.db.UserTableCount(ctx)
	if err != nil {
		return err
	}
	engine.formatter.PrintDBInfo(engine.db.PageSize(), tableCount)
	return nil
}

// handleTables prints the user table names sorted ascending
func (engine *Engine) handleTables(ctx context.Context) error {
	names, err := engine.db.UserTableNames(ctx)
	if err != nil {
		return err
	}
	engine.formatter.PrintTables(names)
	return nil
}

// handleSQL parses and executes a SELECT statement
func (engine *Engine) handleSQL(ctx context.Context, sql string) error {
	query, err := parseQuery(sql)
	if err != nil {
		return err
	}

	engine.logger.Debug("executing query",
		"table", query.Table,
		"count", query.Count,
		"conditions", len(query.Conditions))

	if query.Count {
		count, err := engine.executor.Count(ctx, query)
		if err != nil {
			return err
		}
		engine.formatter.PrintCount(count)
		return nil
	}

	rows, err := engine.executor.Rows(ctx, query)
	if err != nil {
		return err
	}
	for fields, err := range rows {
		if err != nil {
			return err
		}
		engine.formatter.PrintRow(fields)
	}
	return nil
}
