package main

import "io"

// Configuration and Options

// DatabaseConfig holds database configuration options
type DatabaseConfig struct {
	PageCacheSize  int
	QueryTimeout   int // milliseconds
	ValidationMode ValidationLevel
}

// ValidationLevel defines validation strictness
type ValidationLevel int

const (
	ValidationNone ValidationLevel = iota
	ValidationBasic
	ValidationStrict
)

// DatabaseOption represents a functional option for database configuration
type DatabaseOption func(*DatabaseConfig)

// WithPageCacheSize sets the number of raw pages kept in memory
func WithPageCacheSize(size int) DatabaseOption {
	return func(cfg *DatabaseConfig) {
		cfg.PageCacheSize = size
	}
}

// WithQueryTimeout sets the per-command timeout in milliseconds
func WithQueryTimeout(timeout int) DatabaseOption {
	return func(cfg *DatabaseConfig) {
		cfg.QueryTimeout = timeout
	}
}

// WithValidation sets the validation level
func WithValidation(level ValidationLevel) DatabaseOption {
	return func(cfg *DatabaseConfig) {
		cfg.ValidationMode = level
	}
}

// DefaultDatabaseConfig returns the default configuration
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		PageCacheSize:  100,
		QueryTimeout:   30000,
		ValidationMode: ValidationBasic,
	}
}

// Resource Management

// ResourceManager handles cleanup of multiple resources
type ResourceManager struct {
	resources []io.Closer
	cleaners  []func() error
}

// NewResourceManager creates a new resource manager
func NewResourceManager() *ResourceManager {
	return &ResourceManager{
		resources: make([]io.Closer, 0),
		cleaners:  make([]func() error, 0),
	}
}

// Add adds a closeable resource to be managed
func (rm *ResourceManager) Add(resource io.Closer) {
	rm.resources = append(rm.resources, resource)
}

// AddCleaner adds a custom cleanup function
func (rm *ResourceManager) AddCleaner(cleaner func() error) {
	rm.cleaners = append(rm.cleaners, cleaner)
}

// Close closes all managed resources in reverse order (LIFO)
func (rm *ResourceManager) Close() error {
	var lastErr error

	for i := len(rm.cleaners) - 1; i >= 0; i-- {
		if err := rm.cleaners[i](); err != nil {
			lastErr = err
		}
	}

	for i := len(rm.resources) - 1; i >= 0; i-- {
		if err := rm.resources[i].Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
