// Package registrar talks to the external DNS provider that hosts zones.
package registrar

import "context"

// Outcome is the uniform result of every registrar operation. Transport
// failures and provider business errors both surface as Success=false with
// Error set.
type Outcome struct {
	Success     bool
	ZoneID      string
	Nameservers []string
	// Status is the provider's activation status, set by ReadZone.
	Status string
	// NotFound is set by ReadZone when the provider has no such zone.
	NotFound bool
	Error    string
}

// Registrar creates, reads and deletes zones by domain name.
type Registrar interface {
	CreateZone(ctx context.Context, domain string) Outcome
	ReadZone(ctx context.Context, domain string) Outcome
	DeleteZone(ctx context.Context, domain string) Outcome
}

func failure(msg string) Outcome {
	if msg == "" {
		msg = "Unknown error"
	}
	return Outcome{Error: msg}
}
