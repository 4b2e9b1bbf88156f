package repo

import (
	"context"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/model"
	"github.com/google/uuid"
)

// UserStore is the single source of truth for user records. Find methods
// return (nil, nil) when nothing matches. Insert must enforce username and
// email uniqueness atomically and report a violation as ErrStoreConflict.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	FindByEmail(ctx context.Context, email string) (*model.User, error)

	Insert(ctx context.Context, u model.User) (uuid.UUID, error)

	ListAll(ctx context.Context) ([]model.User, error)

	Ping(ctx context.Context) error
}
