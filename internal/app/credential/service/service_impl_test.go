package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/db/redis"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/app/credential/hasher"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/app/credential/jwt"
	appsvc "github.com/Miraines/MoonyAndStarry/credential-service/internal/app/credential/service"
	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/model"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/repo"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"github.com/alexedwards/argon2id"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newMemStore() *memStore { return &memStore{users: make(map[uuid.UUID]model.User)} }

func (m *memStore) find(match func(model.User) bool) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := u
			return &cp
		}
	}
	return nil
}

func (m *memStore) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.Username == username }), nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u model.User) bool { return u.Email == email }), nil
}

func (m *memStore) Insert(_ context.Context, u model.User) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.users {
		if v.Username == u.Username {
			return uuid.Nil, customErrors.NewStoreConflict("username")
		}
		if v.Email == u.Email {
			return uuid.Nil, customErrors.NewStoreConflict("email")
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	m.users[u.ID] = u
	return u.ID, nil
}

func (m *memStore) ListAll(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return nil }

// racingStore hides existing users from the pre-checks, as a concurrent
// registration would.
type racingStore struct{ *memStore }

func (racingStore) FindByUsername(context.Context, string) (*model.User, error) { return nil, nil }
func (racingStore) FindByEmail(context.Context, string) (*model.User, error)    { return nil, nil }

type downStore struct{ insertOnly bool }

var errDown = errors.New("connection refused")

func (d downStore) FindByUsername(context.Context, string) (*model.User, error) {
	if d.insertOnly {
		return nil, nil
	}
	return nil, customErrors.WrapStoreUnavailable(errDown, "find")
}
func (d downStore) FindByEmail(context.Context, string) (*model.User, error) { return nil, nil }
func (downStore) Insert(context.Context, model.User) (uuid.UUID, error) {
	return uuid.Nil, customErrors.WrapStoreUnavailable(errDown, "insert")
}
func (downStore) ListAll(context.Context) ([]model.User, error) {
	return nil, customErrors.WrapStoreUnavailable(errDown, "list")
}
func (downStore) Ping(context.Context) error { return errDown }

/* ───────────────────────────── helpers ───────────────────────────── */

var fastParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newSvc(t *testing.T, store repo.UserStore) (appsvc.Service, *clock) {
	t.Helper()
	h, err := hasher.FromName("argon2id", "pepper", 2, 4, fastParams)
	require.NoError(t, err)

	c := &clock{t: time.Now().Truncate(time.Second)}
	iss := jwt.NewHS256([]byte("test-secret"), &config.Config{
		TokenTTL: time.Hour,
		Issuer:   "test",
	}).WithClock(c.Now)

	svc, err := appsvc.New(store, h, iss, appsvc.NewValidator(), zap.NewNop())
	require.NoError(t, err)
	return svc, c
}

func bob() dto.RegisterDTO {
	return dto.RegisterDTO{
		Username:    "bob",
		Email:       "b@x.com",
		Password:    "pw1",
		DateOfBirth: "2000-01-01",
	}
}

/* ────────────────────────────── tests ────────────────────────────── */

func TestRegister_Success(t *testing.T) {
	store := newMemStore()
	svc, _ := newSvc(t, store)

	in := bob()
	in.Phone = &model.Phone{Number: "555", E164Number: "+1555", CountryCode: "US", DialCode: "+1"}
	id, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	u, _ := store.FindByUsername(context.Background(), "bob")
	require.NotNil(t, u)
	require.Equal(t, id, u.ID)
	require.NotEqual(t, "pw1", u.PasswordHash)
	require.NotContains(t, u.PasswordHash, "pw1")
	require.Equal(t, "+1555", u.Phone.E164Number)
}

func TestRegister_DistinctIDs(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())

	a, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)

	other := bob()
	other.Username, other.Email = "carol", "c@x.com"
	b, err := svc.Register(context.Background(), other)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestRegister_SamePasswordDifferentHashes(t *testing.T) {
	store := newMemStore()
	svc, _ := newSvc(t, store)

	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)
	other := bob()
	other.Username, other.Email = "carol", "c@x.com"
	_, err = svc.Register(context.Background(), other)
	require.NoError(t, err)

	b, _ := store.FindByUsername(context.Background(), "bob")
	c, _ := store.FindByUsername(context.Background(), "carol")
	require.NotEqual(t, b.PasswordHash, c.PasswordHash)

	_, err = svc.Login(context.Background(), dto.LoginDTO{Username: "carol", Password: "pw1"})
	require.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())

	cases := map[string]func(*dto.RegisterDTO){
		"username":    func(d *dto.RegisterDTO) { d.Username = "" },
		"email":       func(d *dto.RegisterDTO) { d.Email = "" },
		"password":    func(d *dto.RegisterDTO) { d.Password = "" },
		"dateOfBirth": func(d *dto.RegisterDTO) { d.DateOfBirth = "" },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			in := bob()
			mutate(&in)
			_, err := svc.Register(context.Background(), in)
			require.ErrorIs(t, err, customErrors.ErrValidation)
			require.Contains(t, err.Error(), field+" is required")
		})
	}
}

func TestRegister_Conflicts(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())
	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)

	sameName := bob()
	sameName.Email = "other@x.com"
	_, err = svc.Register(context.Background(), sameName)
	require.ErrorIs(t, err, customErrors.ErrConflict)
	field, _ := customErrors.ConflictField(err)
	require.Equal(t, "username", field)
	require.EqualError(t, err, "username is already taken")

	sameEmail := bob()
	sameEmail.Username = "robert"
	_, err = svc.Register(context.Background(), sameEmail)
	require.ErrorIs(t, err, customErrors.ErrConflict)
	field, _ = customErrors.ConflictField(err)
	require.Equal(t, "email", field)
}

func TestRegister_UsernameCheckedBeforeEmail(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())
	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), bob())
	field, ok := customErrors.ConflictField(err)
	require.True(t, ok)
	require.Equal(t, "username", field)
}

func TestRegister_StoreConflictOnInsert(t *testing.T) {
	mem := newMemStore()
	seed, _ := newSvc(t, mem)
	_, err := seed.Register(context.Background(), bob())
	require.NoError(t, err)

	svc, _ := newSvc(t, racingStore{mem})
	dup := bob()
	dup.Username = "bobby"
	_, err = svc.Register(context.Background(), dup)
	require.ErrorIs(t, err, customErrors.ErrConflict)
	field, _ := customErrors.ConflictField(err)
	require.Equal(t, "email", field)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())

	const n = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, confl int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := bob()
			in.Email = uuid.NewString() + "@x.com"
			_, err := svc.Register(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case customErrors.IsConflict(err):
				confl++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, ok)
	require.Equal(t, n-1, confl)
}

func TestRegister_StoreUnavailable(t *testing.T) {
	svc, _ := newSvc(t, downStore{})
	_, err := svc.Register(context.Background(), bob())
	require.ErrorIs(t, err, customErrors.ErrServiceUnavailable)
	require.NotErrorIs(t, err, customErrors.ErrConflict)

	svc, _ = newSvc(t, downStore{insertOnly: true})
	_, err = svc.Register(context.Background(), bob())
	require.ErrorIs(t, err, customErrors.ErrServiceUnavailable)
}

func TestLogin_Success(t *testing.T) {
	svc, c := newSvc(t, newMemStore())
	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)

	res, err := svc.Login(context.Background(), dto.LoginDTO{Username: "bob", Password: "pw1"})
	require.NoError(t, err)
	require.Equal(t, "bob", res.Username)
	require.NotEmpty(t, res.Token)
	require.True(t, c.t.Add(time.Hour).Equal(res.ExpiresAt))

	sub, err := svc.VerifyToken(context.Background(), res.Token)
	require.NoError(t, err)
	require.Equal(t, "bob", sub)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())
	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)

	_, wrongPw := svc.Login(context.Background(), dto.LoginDTO{Username: "bob", Password: "nope"})
	_, noUser := svc.Login(context.Background(), dto.LoginDTO{Username: "ghost", Password: "pw1"})

	require.ErrorIs(t, wrongPw, customErrors.ErrAuthentication)
	require.ErrorIs(t, noUser, customErrors.ErrAuthentication)
	require.Equal(t, wrongPw.Error(), noUser.Error())
}

func TestLogin_UsernameIsCaseSensitive(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())
	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), dto.LoginDTO{Username: "Bob", Password: "pw1"})
	require.ErrorIs(t, err, customErrors.ErrAuthentication)
}

func TestLogin_CorruptHashIsAuthenticationFailure(t *testing.T) {
	store := newMemStore()
	id := uuid.New()
	store.users[id] = model.User{ID: id, Username: "bob", Email: "b@x.com", PasswordHash: "plain-text"}
	svc, _ := newSvc(t, store)

	_, err := svc.Login(context.Background(), dto.LoginDTO{Username: "bob", Password: "plain-text"})
	require.ErrorIs(t, err, customErrors.ErrAuthentication)
}

func TestLogin_MissingFieldsAreAuthenticationFailure(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())
	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)

	_, wrongPw := svc.Login(context.Background(), dto.LoginDTO{Username: "bob", Password: "nope"})
	for _, in := range []dto.LoginDTO{
		{Username: "bob"},
		{Password: "pw1"},
		{},
	} {
		_, err := svc.Login(context.Background(), in)
		require.ErrorIs(t, err, customErrors.ErrAuthentication)
		require.NotErrorIs(t, err, customErrors.ErrValidation)
		require.Equal(t, wrongPw.Error(), err.Error())
	}

	// the store is never consulted for an incomplete login
	down, _ := newSvc(t, downStore{})
	_, err = down.Login(context.Background(), dto.LoginDTO{Username: "bob"})
	require.ErrorIs(t, err, customErrors.ErrAuthentication)
}

func TestLogin_StoreUnavailable(t *testing.T) {
	svc, _ := newSvc(t, downStore{})
	_, err := svc.Login(context.Background(), dto.LoginDTO{Username: "bob", Password: "pw1"})
	require.ErrorIs(t, err, customErrors.ErrServiceUnavailable)
}

func TestVerifyToken_Expiry(t *testing.T) {
	svc, c := newSvc(t, newMemStore())
	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)
	res, err := svc.Login(context.Background(), dto.LoginDTO{Username: "bob", Password: "pw1"})
	require.NoError(t, err)

	c.t = c.t.Add(time.Second)
	sub, err := svc.VerifyToken(context.Background(), res.Token)
	require.NoError(t, err)
	require.Equal(t, "bob", sub)

	c.t = res.ExpiresAt.Add(time.Second)
	_, err = svc.VerifyToken(context.Background(), res.Token)
	require.ErrorIs(t, err, customErrors.ErrTokenExpired)
}

func TestVerifyToken_Invalid(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())
	_, err := svc.VerifyToken(context.Background(), "a.b.c")
	require.ErrorIs(t, err, customErrors.ErrTokenInvalid)
}

func TestListUsers(t *testing.T) {
	svc, _ := newSvc(t, newMemStore())
	_, err := svc.Register(context.Background(), bob())
	require.NoError(t, err)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	down, _ := newSvc(t, downStore{})
	_, err = down.ListUsers(context.Background())
	require.ErrorIs(t, err, customErrors.ErrServiceUnavailable)
}

func TestBobScenario_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, _ := newSvc(t, redis.NewRedisUserStore(client))
	ctx := context.Background()

	id, err := svc.Register(ctx, bob())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	res, err := svc.Login(ctx, dto.LoginDTO{Username: "bob", Password: "pw1"})
	require.NoError(t, err)
	require.Equal(t, "bob", res.Username)

	sub, err := svc.VerifyToken(ctx, res.Token)
	require.NoError(t, err)
	require.Equal(t, "bob", sub)

	_, err = svc.Login(ctx, dto.LoginDTO{Username: "bob", Password: "wrong"})
	require.ErrorIs(t, err, customErrors.ErrAuthentication)

	again := bob()
	again.Username = "bobby"
	_, err = svc.Register(ctx, again)
	field, _ := customErrors.ConflictField(err)
	require.Equal(t, "email", field)
}
