package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/app/credential/hasher"
	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/errors"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/jwt"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/model"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/repo"
	logx "github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	Register(context.Context, dto.RegisterDTO) (uuid.UUID, error)
	Login(context.Context, dto.LoginDTO) (model.LoginResult, error)
	VerifyToken(ctx context.Context, token string) (string, error)
	ListUsers(context.Context) ([]model.User, error)
}

type credentialService struct {
	store  repo.UserStore
	hasher *hasher.PasswordHasher
	tokens jwt.TokenIssuer
	v      *validator.Validate
	log    *zap.Logger

	// dummyHash is verified against when the user does not exist so both
	// failure paths spend the same time in the hasher.
	dummyHash string
}

func New(
	store repo.UserStore,
	h *hasher.PasswordHasher,
	tokens jwt.TokenIssuer,
	v *validator.Validate,
	log *zap.Logger,
) (Service, error) {
	dummy, err := h.Hash(context.Background(), uuid.NewString())
	if err != nil {
		return nil, customErrors.WrapInternal(err, "dummy hash")
	}
	return &credentialService{
		store: store, hasher: h, tokens: tokens, v: v, log: log, dummyHash: dummy,
	}, nil
}

// NewValidator reports struct fields by their json names so validation
// messages match the request body.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func (s *credentialService) Register(ctx context.Context, in dto.RegisterDTO) (uuid.UUID, error) {
	if err := s.v.Struct(in); err != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return uuid.Nil, customErrors.NewValidation(validationMessage(err))
	}

	existing, err := s.store.FindByUsername(ctx, in.Username)
	if err != nil {
		return uuid.Nil, s.registerUnavailable(err, "FindByUsername")
	}
	if existing != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		return uuid.Nil, customErrors.NewConflict("username")
	}

	existing, err = s.store.FindByEmail(ctx, in.Email)
	if err != nil {
		return uuid.Nil, s.registerUnavailable(err, "FindByEmail")
	}
	if existing != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		return uuid.Nil, customErrors.NewConflict("email")
	}

	started := time.Now()
	passwordHash, err := s.hasher.Hash(ctx, in.Password)
	metrics.PasswordHashDurationSeconds.WithLabelValues("hash").Observe(time.Since(started).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return uuid.Nil, s.registerUnavailable(err, "Hash")
		}
		metrics.RegistrationsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return uuid.Nil, customErrors.WrapInternal(err, "Register")
	}

	id, err := s.store.Insert(ctx, model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		DateOfBirth:  in.DateOfBirth,
		Phone:        in.Phone,
	})
	switch {
	case customErrors.IsStoreConflict(err):
		metrics.RegistrationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
		field, _ := customErrors.ConflictField(err)
		s.log.Info("registration lost uniqueness race", zap.String("field", field))
		return uuid.Nil, customErrors.NewConflict(field)
	case err != nil:
		return uuid.Nil, s.registerUnavailable(err, "Insert")
	}

	metrics.RegistrationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.log.Info("user registered", zap.String("id", id.String()), logx.Digest(in.Email))
	return id, nil
}

func (s *credentialService) registerUnavailable(err error, op string) error {
	metrics.RegistrationsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
	s.log.Warn("credential store unavailable", zap.String("op", op), zap.Error(err))
	return customErrors.WrapUnavailable(err, op)
}

func (s *credentialService) Login(ctx context.Context, in dto.LoginDTO) (model.LoginResult, error) {
	// Missing fields fail like a wrong password: same error, same hasher cost.
	var user *model.User
	if in.Username != "" && in.Password != "" {
		var err error
		user, err = s.store.FindByUsername(ctx, in.Username)
		if err != nil {
			metrics.LoginsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
			s.log.Warn("credential store unavailable", zap.String("op", "FindByUsername"), zap.Error(err))
			return model.LoginResult{}, customErrors.WrapUnavailable(err, "Login")
		}
	}

	encoded := s.dummyHash
	if user != nil {
		encoded = user.PasswordHash
	}

	started := time.Now()
	ok, err := s.hasher.Verify(ctx, in.Password, encoded)
	metrics.PasswordHashDurationSeconds.WithLabelValues("verify").Observe(time.Since(started).Seconds())
	switch {
	case err != nil && ctx.Err() != nil:
		metrics.LoginsTotal.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		return model.LoginResult{}, customErrors.WrapUnavailable(err, "Login")
	case err != nil:
		s.log.Error("stored password hash is unreadable", logx.Digest(in.Username), zap.Error(err))
		metrics.LoginsTotal.WithLabelValues(metrics.OutcomeDenied).Inc()
		return model.LoginResult{}, customErrors.ErrAuthentication
	case !ok || user == nil:
		metrics.LoginsTotal.WithLabelValues(metrics.OutcomeDenied).Inc()
		return model.LoginResult{}, customErrors.ErrAuthentication
	}

	token, exp, err := s.tokens.Issue(user.Username)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return model.LoginResult{}, customErrors.WrapInternal(err, "Issue")
	}

	metrics.LoginsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return model.LoginResult{Token: token, Username: user.Username, ExpiresAt: exp}, nil
}

func (s *credentialService) VerifyToken(_ context.Context, token string) (string, error) {
	claims, err := s.tokens.Validate(token)
	switch {
	case errors.Is(err, customErrors.ErrTokenExpired):
		metrics.TokenVerificationsTotal.WithLabelValues(metrics.OutcomeExpired).Inc()
		return "", customErrors.ErrTokenExpired
	case err != nil:
		metrics.TokenVerificationsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return "", customErrors.ErrTokenInvalid
	}
	metrics.TokenVerificationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return claims.Subject, nil
}

func (s *credentialService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, customErrors.WrapUnavailable(err, "ListUsers")
	}
	return users, nil
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Tag() == "required" {
			msgs = append(msgs, fe.Field()+" is required")
			continue
		}
		msgs = append(msgs, fe.Field()+" is invalid")
	}
	return strings.Join(msgs, "; ")
}
