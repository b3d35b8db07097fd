package models

import "errors"

// Sentinel errors shared across packages. Wrap with fmt.Errorf("...: %w", err)
// and test with errors.Is.
var (
	ErrInvalidNetworkFormat   = errors.New("invalid network format")
	ErrInvalidAddress         = errors.New("invalid IPv4 address")
	ErrVLANOutOfRange         = errors.New("vlan id out of range")
	ErrNoNetworkInterface     = errors.New("no network interface with an assigned address")
	ErrMissingScanResults     = errors.New("scan results missing")
	ErrMalformedScanResults   = errors.New("scan results malformed")
	ErrUnauthorizedEngagement = errors.New("engagement authorization not received")
	ErrSessionAborted         = errors.New("configuration session aborted")
)
