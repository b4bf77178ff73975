// Package bootstrap provides application initialization and lifecycle management.
// It extracts the initialization logic from main.go into testable, composable components.
package bootstrap
