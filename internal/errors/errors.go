package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ServerNotFoundError is returned when a server id is not part of the configuration
type ServerNotFoundError struct {
	ServerID string
}

// Error returns the error message
func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("server not found: %s", e.ServerID)
}

// ValidationError represents an error when validation fails
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// AuthError is returned when a panel rejects the login or answers it with garbage.
// Status is zero when the HTTP exchange itself succeeded.
type AuthError struct {
	ServerID string
	Status   int
	Message  string
}

// Error returns the error message
func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed on %s (status %d): %s", e.ServerID, e.Status, e.Message)
	}
	return fmt.Sprintf("authentication failed on %s: %s", e.ServerID, e.Message)
}

// APIError represents a failed call to a non-login panel endpoint
type APIError struct {
	ServerID  string
	Operation string
	Status    int
	Message   string
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("panel API error on %s during %s (status %d): %s", e.ServerID, e.Operation, e.Status, e.Message)
}

// UnsupportedFeatureError is returned when the panel is too old to expose an endpoint
type UnsupportedFeatureError struct {
	ServerID string
	Feature  string
	Message  string
}

// Error returns the error message
func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s is not supported by panel %s: %s", e.Feature, e.ServerID, e.Message)
}

// CapacityExceededError is returned when a server already holds the configured maximum of clients
type CapacityExceededError struct {
	ServerID string
	Count    int
	Max      int
}

// Error returns the error message
func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("server %s is full (%d/%d clients)", e.ServerID, e.Count, e.Max)
}

// NoServersAvailableError is returned when every server failed during load based selection
type NoServersAvailableError struct {
	Failures map[string]error
}

// Error returns the error message
func (e *NoServersAvailableError) Error() string {
	if len(e.Failures) == 0 {
		return "no servers available"
	}

	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Failures[id]))
	}
	return "no servers available: " + strings.Join(parts, "; ")
}

// ConfigError represents an error related to configuration
type ConfigError struct {
	Section string
	Message string
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Section, e.Message)
}
