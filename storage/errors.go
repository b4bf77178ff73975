package storage

import "errors"

// Storage error constants
var (
	// ErrThreatScoreNotFound is returned when no threat score exists for an IP
	ErrThreatScoreNotFound = errors.New("threat score not found")

	// ErrBaselineNotFound is returned when no anomaly baseline exists for a key
	ErrBaselineNotFound = errors.New("anomaly baseline not found")

	// ErrAgentNotFound is returned when an agent is not found
	ErrAgentNotFound = errors.New("agent not found")

	// ErrIncidentNotFound is returned when an incident is not found
	ErrIncidentNotFound = errors.New("incident not found")

	// ErrBlockNotFound is returned when no blocklist entry exists for a key
	ErrBlockNotFound = errors.New("blocklist entry not found")
)
