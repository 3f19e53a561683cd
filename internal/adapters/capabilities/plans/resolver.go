package plans

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Resolver implementa capabilities.Resolver contra el servicio de planes.
type Resolver struct {
	client   *Client
	allowAll bool
}

// NewResolver crea un resolver.
// Si ALLOW_ALL_CAPABILITIES=true (env), todo devuelve true (modo dev / fallback).
func NewResolver(client *Client) *Resolver {
	allowAll := strings.EqualFold(strings.TrimSpace(os.Getenv("ALLOW_ALL_CAPABILITIES")), "true")
	return &Resolver{
		client:   client,
		allowAll: allowAll,
	}
}

// Has responde si userID tiene una feature habilitada.
func (r *Resolver) Has(ctx context.Context, userID, feature string) (bool, error) {
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return false, errors.New("feature required")
	}

	if r.allowAll {
		return true, nil
	}

	if r == nil || r.client == nil || !r.client.IsConfigured() {
		// Mejor fallar explícito que permitir sin control.
		return false, ErrNotConfigured
	}

	resp, err := r.client.GetCapabilities(ctx, userID)
	if err != nil {
		return false, err
	}
	return resp.Capabilities[feature], nil
}
