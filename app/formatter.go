package main

import (
	"fmt"
	"io"
	"strings"
)

// ConsoleFormatter renders command results for console display
type ConsoleFormatter struct {
	io.Writer
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(writer io.Writer) *ConsoleFormatter {
	return &ConsoleFormatter{Writer: writer}
}

// PrintDBInfo prints the .dbinfo block
func (cf *ConsoleFormatter) PrintDBInfo(pageSize, tableCount int) {
	fmt.Fprintf(cf, "database page size: %v\n", pageSize)
	fmt.Fprintf(cf, "number of tables: %v\n", tableCount)
}

// PrintTables prints the .tables listing: names space-separated on one line
func (cf *ConsoleFormatter) PrintTables(names []string) {
	fmt.Fprintln(cf, strings.Join(names, " "))
}

// PrintCount prints a COUNT(*) result
func (cf *ConsoleFormatter) PrintCount(count int64) {
	fmt.Fprintf(cf, "%d\n", count)
}

// PrintRow prints one result row, fields pipe-separated
func (cf *ConsoleFormatter) PrintRow(fields []string) {
	fmt.Fprintln(cf, strings.Join(fields, "|"))
}
