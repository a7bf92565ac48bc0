// Package core provides the shared error taxonomy used across the session,
// stream load and migration packages.
//
// Structure:
//
//	errors.go   - Error, codes, constructors and classification helpers
//	endpoint.go - Endpoint (front-end host:port) parsing
package core
