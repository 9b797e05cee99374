package storage

import "context"

type ownerKey struct{}

// SetOwner injects the owning tenant of the runs created or read with ctx.
func SetOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// GetOwner extracts the owner from the context.
// Returns an empty string if no owner is set (single-tenant mode).
func GetOwner(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKey{}).(string); ok {
		return v
	}
	return ""
}
