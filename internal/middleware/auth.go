package middleware

import (
	"net/http"
	"strings"

	"quota-service/internal/model"
	"quota-service/pkg/jwtutil"
	"quota-service/pkg/logger"
	"quota-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the session token from the Authorization header
// and puts the trusted {account_id, role} pair into the request context.
// The token itself is issued by the external identity provider.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordQuotaError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordQuotaError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid session token", zap.Error(err))
			prometheus.RecordQuotaError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		if !claims.Role.IsValid() {
			log.Error("Session token carries unknown role", zap.String("role", string(claims.Role)))
			prometheus.RecordQuotaError("invalid_role")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown role in token"})
		}

		// Store identity in context for later use
		c.Set("account_id", claims.AccountID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)

		log.Debug("Request authenticated",
			zap.Uint("account_id", claims.AccountID),
			zap.String("role", string(claims.Role)))

		return next(c)
	}
}

// RequireAdmin allows only Admin accounts through. Approval, template and
// settings surfaces sit behind this.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, ok := c.Get("role").(model.Role)
		if !ok || role != model.RoleAdmin {
			logger.FromContext(c).Warn("Admin-only endpoint denied",
				zap.String("role", string(role)),
				zap.String("path", c.Path()))
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin role required"})
		}
		return next(c)
	}
}
