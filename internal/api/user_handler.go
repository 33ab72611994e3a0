package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/errcode"
	"resumeBuilder/internal/resume"
)

// LoginLimits 控制登录限流与失败锁定。
type LoginLimits struct {
	RatePerHour   int
	LockThreshold int
	LockTTL       time.Duration
}

// UserHandler 处理注册、登录与当前用户数据。
type UserHandler struct {
	users       *database.UserRepository
	resumes     *resume.Service
	authService *auth.AuthService
	redis       redis.UniversalClient
	logger      *slog.Logger
	limits      LoginLimits
}

// NewUserHandler 构造用户处理器。redisClient 为空时关闭登录限流与锁定。
func NewUserHandler(users *database.UserRepository, resumes *resume.Service, authService *auth.AuthService, redisClient redis.UniversalClient, logger *slog.Logger, limits LoginLimits) *UserHandler {
	return &UserHandler{
		users:       users,
		resumes:     resumes,
		authService: authService,
		redis:       redisClient,
		logger:      logger,
		limits:      limits,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=128"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type userResponse struct {
	ID        uint      `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(user *database.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

// Register 创建新用户并直接签发访问令牌。
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Missing required field")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", database.NormalizeEmail(req.Email)))

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Info("hash password rejected", slog.Any("error", err))
		BadRequest(c, "Invalid password")
		return
	}

	user := &database.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hashed,
	}
	if err := h.users.Create(ctx, user); err != nil {
		respondError(c, logger, err)
		return
	}

	token, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		logger.Error("generate token failed", slog.Any("error", err))
		Internal(c, "Internal server error")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"token":   token,
		"user":    newUserResponse(user),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验口令并返回访问令牌。
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Missing required field")
		return
	}

	ctx := c.Request.Context()
	email := database.NormalizeEmail(req.Email)
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	if h.redis != nil {
		// 速率限制：每 IP+邮箱 每小时 RatePerHour 次
		rateKey := "rate:login:" + c.ClientIP() + ":" + email + ":" + time.Now().UTC().Format("2006010215")
		count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
		if err != nil {
			logger.Warn("login rate counter unavailable", slog.Any("error", err))
			count = 0
		}
		if h.limits.RatePerHour > 0 && count > int64(h.limits.RatePerHour) {
			TooManyRequests(c, "Too many login attempts")
			return
		}

		if ttl, _ := h.redis.TTL(ctx, "lock:login:"+email).Result(); ttl > 0 {
			TooManyRequests(c, "Account temporarily locked")
			return
		}
	}

	user, err := h.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errcode.ErrNotFound) {
			logger.Info("login failed: user not found")
			h.recordLoginFailure(ctx, email)
			respondError(c, logger, errcode.ErrInvalidCredentials)
			return
		}
		respondError(c, logger, err)
		return
	}

	if !h.authService.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		h.recordLoginFailure(ctx, email)
		respondError(c, logger, errcode.ErrInvalidCredentials)
		return
	}

	if h.redis != nil {
		_ = h.redis.Del(ctx, "lock:login:fail:"+email).Err()
	}

	token, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		logger.Error("generate token failed", slog.Any("error", err))
		Internal(c, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successfully",
		"token":   token,
		"user":    newUserResponse(user),
	})
}

// GetUserData 返回当前用户资料，不含密码哈希。
func (h *UserHandler) GetUserData(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, errcode.ErrNotFound) {
			NotFound(c, "User not found")
			return
		}
		respondError(c, h.loggerFromContext(c), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// GetUserResumes 返回当前用户的全部简历，最近更新的在前。
func (h *UserHandler) GetUserResumes(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	logger := h.loggerFromContext(c)
	list, err := h.resumes.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, logger, err)
		return
	}

	views := make([]resume.Document, 0, len(list))
	for i := range list {
		view, err := resume.View(&list[i], true)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		views = append(views, view)
	}
	// 前端按 resume 键读取列表。
	c.JSON(http.StatusOK, gin.H{"resume": views})
}

func (h *UserHandler) recordLoginFailure(ctx context.Context, email string) {
	if h.redis == nil {
		return
	}
	failKey := "lock:login:fail:" + email
	count, err := incrWithTTL(ctx, h.redis, failKey, h.limits.LockTTL)
	if err != nil {
		return
	}
	if h.limits.LockThreshold > 0 && count >= int64(h.limits.LockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+email, "1", h.limits.LockTTL).Err()
	}
}

func (h *UserHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if logger := middleware.LoggerFromContext(c); logger != nil {
		return logger
	}
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}
