package postgres

import (
	"context"
	"errors"
	"strings"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type PostgresUserStore struct {
	db *gorm.DB
}

func NewPostgresUserStore(db *gorm.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (p *PostgresUserStore) Insert(ctx context.Context, user model.User) (uuid.UUID, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	res := p.db.WithContext(ctx).Create(&user)
	if err := res.Error; err != nil {
		if field, ok := duplicateField(err); ok {
			return uuid.Nil, customErrors.NewStoreConflict(field)
		}
		return uuid.Nil, customErrors.WrapStoreUnavailable(err, "Insert")
	}
	return user.ID, nil
}

func (p *PostgresUserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return p.findOne(ctx, "FindByUsername", "username = ?", username)
}

func (p *PostgresUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return p.findOne(ctx, "FindByEmail", "email = ?", email)
}

func (p *PostgresUserStore) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := p.db.WithContext(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, customErrors.WrapStoreUnavailable(err, "ListAll")
	}
	return users, nil
}

func (p *PostgresUserStore) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return customErrors.WrapStoreUnavailable(err, "Ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return customErrors.WrapStoreUnavailable(err, "Ping")
	}
	return nil
}

func (p *PostgresUserStore) findOne(ctx context.Context, op, query string, arg string) (*model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where(query, arg).Take(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err := res.Error; err != nil {
		return nil, customErrors.WrapStoreUnavailable(err, op)
	}
	return &u, nil
}

// constraintColumns maps the unique constraints from the users migration to
// the column they guard.
var constraintColumns = map[string]string{
	"users_username_key": "username",
	"users_email_key":    "email",
}

// duplicateField recognizes unique violations from pgx, from gorm's error
// translator and from SQLite, and names the column when it can. The
// colliding value is never inspected.
func duplicateField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if col, ok := constraintColumns[pgErr.ConstraintName]; ok {
			return col, true
		}
		return columnFromDetail(pgErr.Detail), true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	const sqliteUnique = "UNIQUE constraint failed: "
	if msg := err.Error(); strings.Contains(msg, sqliteUnique) {
		target := msg[strings.Index(msg, sqliteUnique)+len(sqliteUnique):]
		target, _, _ = strings.Cut(target, ",")
		return knownColumn(target[strings.LastIndex(target, ".")+1:]), true
	}
	return "", false
}

// columnFromDetail reads the column out of "Key (email)=(...) already exists.".
func columnFromDetail(detail string) string {
	rest, ok := strings.CutPrefix(detail, "Key (")
	if !ok {
		return ""
	}
	col, _, ok := strings.Cut(rest, ")=")
	if !ok {
		return ""
	}
	return knownColumn(col)
}

func knownColumn(col string) string {
	switch col = strings.TrimSpace(col); col {
	case "username", "email":
		return col
	default:
		return ""
	}
}
