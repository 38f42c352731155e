// Package services holds the bridge's application logic: token lifecycle,
// the automation gate, and the read models behind the admin API.
// This file centralizes service-level error values so that handlers can map
// them to HTTP results consistently. The failure taxonomy shared with the
// pollers lives in the domain package.
package services

import "errors"

var (
	// ErrAutomationNotFound indicates the user has no automation of the
	// requested kind.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrIntegrationNotFound indicates the user has no credential record for
	// the requested platform.
	ErrIntegrationNotFound = errors.New("integration not found")

	// ErrUnknownPlatform is returned for platform tags outside the fixed set.
	ErrUnknownPlatform = errors.New("unknown platform")
)
