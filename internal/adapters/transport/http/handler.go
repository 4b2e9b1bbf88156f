package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/http/dto"
	httpmw "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/http/middleware"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/ratelimit"
	appsvc "github.com/Miraines/MoonyAndStarry/credential-service/internal/app/credential/service"
	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/errors"
	logx "github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const invalidCredentials = "Invalid credentials"

type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

type Handler struct {
	svc   appsvc.Service
	store Pinger
	log   *zap.Logger
}

func NewHandler(svc appsvc.Service, store Pinger, log *zap.Logger) *Handler {
	return &Handler{svc: svc, store: store, log: log}
}

// NewRouter собирает gin-движок со всеми middleware и маршрутами.
func NewRouter(h *Handler, visitors *ratelimit.Visitors, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(h.log))
	router.Use(httpmw.NewHTTPRateLimitPerIP(visitors))

	// cors.New паникует без единого origin, поэтому без списка CORS просто не включаем.
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{
				"Origin", "Content-Type", "Accept",
				"Authorization",
				"X-Requested-With",
			},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: cfg.AllowCredentials,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/verify", h.verify)
	router.GET("/users", httpmw.RequireBearer(h.svc, h.log), h.listUsers)
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (h *Handler) register(c *gin.Context) {
	var body dto.RegisterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "malformed request body"})
		return
	}
	if body.Password != body.ConfirmPassword {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "passwords do not match"})
		return
	}
	h.log.Info("/register", logx.Digest(body.Email))

	id, err := h.svc.Register(c.Request.Context(), body.RegisterDTO)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RegisterResponse{
		ID:      id.String(),
		Message: "User registered successfully",
	})
}

func (h *Handler) login(c *gin.Context) {
	var body dto.LoginDTO
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, dto.LoginResponse{Message: "malformed request body"})
		return
	}
	h.log.Info("/login", logx.Digest(body.Username))

	res, err := h.svc.Login(c.Request.Context(), body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.LoginResponse{
			Success:   true,
			Token:     res.Token,
			Username:  res.Username,
			ExpiresAt: res.ExpiresAt.Unix(),
		})
	case customErrors.IsAuthentication(err):
		c.JSON(http.StatusUnauthorized, dto.LoginResponse{Message: invalidCredentials})
	case customErrors.IsServiceUnavailable(err):
		h.log.Warn("/login unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.LoginResponse{Message: "service unavailable"})
	default:
		h.log.Error("/login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.LoginResponse{Message: "internal server error"})
	}
}

func (h *Handler) verify(c *gin.Context) {
	var body dto.VerifyDTO
	if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "token is required"})
		return
	}

	subject, err := h.svc.VerifyToken(c.Request.Context(), body.Token)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.VerifyResponse{Subject: subject})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	out := make([]dto.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, dto.ToUserView(u))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "time": time.Now().Unix()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
}

// handleError: единственное место, где ошибки сервиса превращаются в HTTP-коды.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case customErrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case customErrors.IsConflict(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case customErrors.IsAuthentication(err):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: invalidCredentials})
	case customErrors.IsTokenExpired(err):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: customErrors.ErrTokenExpired.Error()})
	case customErrors.IsTokenInvalid(err):
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: customErrors.ErrTokenInvalid.Error()})
	case customErrors.IsServiceUnavailable(err):
		h.log.Warn("request failed: service unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "service unavailable"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}
}
