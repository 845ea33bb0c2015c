package featureflags

import (
	"context"
	"errors"
)

// ErrFlagNotFound reports a key with no stored flag.
var ErrFlagNotFound = errors.New("feature flag not found")

// Repository stores flags. Implementations must be safe for concurrent use.
type Repository interface {
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)
	SetFlag(ctx context.Context, flag *Flag) error
	SetFlags(ctx context.Context, flags []*Flag) error
	DeleteFlag(ctx context.Context, key string) error
}
