package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zyldzkie/gas-guard/internal/model"
	"github.com/Zyldzkie/gas-guard/internal/storage"
)

// ErrBindingNotFound means no profile document exists for the identity.
// The caller must treat this as "no monitoring possible", not retry.
var ErrBindingNotFound = errors.New("profile: binding not found")

// Resolver maps an authenticated identity to its hardware binding.
// Lookups are read-only; the resolver is re-invoked on sign-in and on
// every explicit rebind instead of mutating a cached binding in place.
type Resolver struct {
	store storage.Store
}

func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, identity string) (model.HardwareBinding, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return model.HardwareBinding{}, fmt.Errorf("%w: empty identity", ErrBindingNotFound)
	}
	binding, err := r.store.GetProfile(ctx, identity)
	if errors.Is(err, storage.ErrNotFound) {
		return model.HardwareBinding{}, fmt.Errorf("%w: %s", ErrBindingNotFound, identity)
	}
	if err != nil {
		return model.HardwareBinding{}, err
	}
	return binding, nil
}
