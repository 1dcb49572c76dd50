package provider

import "context"

// Provider is implemented by everything plcstream calls out to.
type Provider interface {
	// Name identifies the provider in logs, spans and errors.
	Name() string
	// IsAvailable reports whether the provider can take calls right now.
	IsAvailable(ctx context.Context) bool
}
