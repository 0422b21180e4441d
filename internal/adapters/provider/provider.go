// Package provider defines the contract every source-control platform
// adapter satisfies: given a linked account and a contribution window,
// produce that platform's wholesale ProviderStats record.
package provider

import (
	"context"

	"github.com/devrank/devrank/internal/domain/model"
	"github.com/devrank/devrank/internal/domain/window"
)

// Credentials identifies one user's account on one platform.
type Credentials struct {
	Username    string
	AccessToken string
}

// Collector pulls one platform's contribution signals for one user.
// Implementations must bound every call against the window's UTC cutoff
// and must never patch fields: the returned record replaces the stored
// one wholesale.
type Collector interface {
	// Platform returns the platform key, e.g. "github".
	Platform() string

	// Collect gathers the user's stats since the window cutoff. A non-nil
	// error means no usable record could be produced at all; degraded
	// (best-effort) records return nil error.
	Collect(ctx context.Context, creds Credentials, w window.Window) (model.ProviderStats, error)
}
