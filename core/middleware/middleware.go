package middleware

import (
	"errors"
	"fmt"
	"strings"

	"smartschedule/core/controller"
	appErrors "smartschedule/core/errors"
	"smartschedule/core/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// SubjectKey is the echo context key holding the authenticated token subject.
const SubjectKey = "subject"

type Options struct {
	JWTSecret string
	RPS       float64
	Burst     int
}

type Middleware struct {
	base      controller.BaseController
	jwtSecret []byte
	limiter   *RateLimiter
}

func NewMiddleware(opts Options) *Middleware {
	m := &Middleware{
		base:      controller.NewBaseController(),
		jwtSecret: []byte(opts.JWTSecret),
	}
	if opts.RPS > 0 {
		m.limiter = NewRateLimiter(opts.RPS, opts.Burst)
	}
	return m
}

// AuthMiddleware requires an HS256 bearer token. With no secret configured every request passes.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(m.jwtSecret) == 0 {
				return next(c)
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return m.base.Unauthorized(appErrors.ErrMissingAuthorizationHeader, "missing authorization header")
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				return m.base.Unauthorized(appErrors.ErrInvalidTokenFormat, "authorization header must be a bearer token")
			}

			subject, err := m.parseSubject(raw)
			if err != nil {
				logger.Info("Middleware:AuthMiddleware:Rejected", "error", err)
				if errors.Is(err, jwt.ErrTokenExpired) {
					return m.base.Unauthorized(appErrors.ErrTokenExpired, "token expired")
				}
				return m.base.Unauthorized(appErrors.ErrUnauthorized, "invalid token")
			}

			c.Set(SubjectKey, subject)
			return next(c)
		}
	}
}

func (m *Middleware) parseSubject(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

// RateLimit throttles each client, keyed by token subject or else by remote address.
func (m *Middleware) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.limiter == nil {
				return next(c)
			}

			key := c.RealIP()
			if subject, ok := c.Get(SubjectKey).(string); ok && subject != "" {
				key = "sub:" + subject
			}
			if !m.limiter.Allow(key) {
				logger.Warn("Middleware:RateLimit:Exceeded", "client", key, "path", c.Path())
				return m.base.TooManyRequests(appErrors.ErrTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
