package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix     = "cred:user:"
	usernameKeyPrefix = "cred:username:"
	emailKeyPrefix    = "cred:email:"
	usersSetKey       = "cred:users"
)

// insertScript claims both index keys and writes the document in one step.
// Returns 0 on success, 1 if the username is taken, 2 if the email is taken.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 1 end
if redis.call('EXISTS', KEYS[2]) == 1 then return 2 end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[1])
redis.call('SET', KEYS[3], ARGV[2])
redis.call('SADD', KEYS[4], ARGV[1])
return 0
`)

type RedisUserStore struct {
	client *redis.Client
}

func NewRedisUserStore(client *redis.Client) *RedisUserStore {
	return &RedisUserStore{
		client: client,
	}
}

func (r *RedisUserStore) Insert(ctx context.Context, user model.User) (uuid.UUID, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	doc, err := json.Marshal(user)
	if err != nil {
		return uuid.Nil, customErrors.WrapInternal(err, "Insert")
	}

	id := user.ID.String()
	keys := []string{
		usernameKeyPrefix + user.Username,
		emailKeyPrefix + user.Email,
		userKeyPrefix + id,
		usersSetKey,
	}
	res, err := insertScript.Run(ctx, r.client, keys, id, doc).Int()
	if err != nil {
		return uuid.Nil, customErrors.WrapStoreUnavailable(err, "Insert")
	}
	switch res {
	case 1:
		return uuid.Nil, customErrors.NewStoreConflict("username")
	case 2:
		return uuid.Nil, customErrors.NewStoreConflict("email")
	}
	return user.ID, nil
}

func (r *RedisUserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findByIndex(ctx, "FindByUsername", usernameKeyPrefix+username)
}

func (r *RedisUserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findByIndex(ctx, "FindByEmail", emailKeyPrefix+email)
}

func (r *RedisUserStore) ListAll(ctx context.Context) ([]model.User, error) {
	ids, err := r.client.SMembers(ctx, usersSetKey).Result()
	if err != nil {
		return nil, customErrors.WrapStoreUnavailable(err, "ListAll")
	}
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKeyPrefix + id
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, customErrors.WrapStoreUnavailable(err, "ListAll")
	}

	users := make([]model.User, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // document vanished between SMEMBERS and MGET
		}
		var u model.User
		if err := json.Unmarshal([]byte(s), &u); err != nil {
			return nil, customErrors.WrapInternal(err, "ListAll")
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *RedisUserStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return customErrors.WrapStoreUnavailable(err, "Ping")
	}
	return nil
}

func (r *RedisUserStore) findByIndex(ctx context.Context, op, indexKey string) (*model.User, error) {
	id, err := r.client.Get(ctx, indexKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, customErrors.WrapStoreUnavailable(err, op)
	}

	raw, err := r.client.Get(ctx, userKeyPrefix+id).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, customErrors.WrapStoreUnavailable(err, op)
	}

	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, customErrors.WrapInternal(err, op)
	}
	return &u, nil
}
