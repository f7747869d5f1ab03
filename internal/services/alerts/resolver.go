package alerts

import (
	"context"
	"strings"

	"marketpulse/internal/domain/alert"
	"marketpulse/pkg/errors"
)

var _ alert.RecipientResolver = (*StaticResolver)(nil)

// StaticResolver resolves rule owners to email addresses without a user
// store. An owner that already looks like an address is used directly;
// anything else falls back to the configured address.
type StaticResolver struct {
	fallback string
}

// NewStaticResolver creates a resolver with an optional fallback address
func NewStaticResolver(fallback string) *StaticResolver {
	return &StaticResolver{fallback: fallback}
}

// EmailFor returns the delivery address for a rule owner
func (r *StaticResolver) EmailFor(_ context.Context, owner string) (string, error) {
	if strings.Contains(owner, "@") {
		return owner, nil
	}
	if r.fallback != "" {
		return r.fallback, nil
	}
	return "", errors.Wrapf(errors.ErrNoRecipient, "owner %q has no registered address", owner)
}
