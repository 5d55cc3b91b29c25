package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"learnhub-backend/internal/authorization"
	"learnhub-backend/internal/repository"
	"learnhub-backend/pkg/logger"
)

const (
	AuthTokenCookieName = "auth_token"

	ContextUserID = "user_id"
	ContextRole   = "role"
)

// AuthMiddleware accepts a bearer token or the auth cookie. When users is set the role
// is read from the user record so a revoked admin loses access before the token expires.
func AuthMiddleware(jwtSecret string, users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader != "" {
			bearerToken := strings.SplitN(authHeader, " ", 2)
			if len(bearerToken) == 2 && strings.EqualFold(bearerToken[0], "Bearer") {
				tokenString = strings.TrimSpace(bearerToken[1])
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				c.Abort()
				return
			}
		}

		if tokenString == "" {
			if cookieToken, err := c.Cookie(AuthTokenCookieName); err == nil && strings.TrimSpace(cookieToken) != "" {
				tokenString = cookieToken
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization credentials required"})
				c.Abort()
				return
			}
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			c.Abort()
			return
		}

		rawID, ok := claims["user_id"].(float64)
		if !ok || rawID <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			c.Abort()
			return
		}
		userID := uint(rawID)

		role, _ := authorization.ParseUserRole(claims["role"])
		if users != nil {
			user, err := users.GetByID(userID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					c.JSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
				} else {
					logger.Error(err, "Failed to load authenticated user", map[string]interface{}{"user_id": userID})
					c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to authenticate"})
				}
				c.Abort()
				return
			}
			role = user.Role
		}
		if role == "" {
			role = authorization.RoleUser
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextRole, role)
		ctx := logger.ContextWithFields(c.Request.Context(), map[string]interface{}{"user_id": userID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequirePermission lets the request through only when the caller's role grants perm.
func RequirePermission(perm authorization.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role, ok := CurrentUser(c)
		if !ok || !authorization.RoleHasPermission(role, perm) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions", "code": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity AuthMiddleware stored on the context.
func CurrentUser(c *gin.Context) (uint, authorization.UserRole, bool) {
	rawID, exists := c.Get(ContextUserID)
	if !exists {
		return 0, "", false
	}
	userID, ok := rawID.(uint)
	if !ok || userID == 0 {
		return 0, "", false
	}
	role, _ := c.Get(ContextRole)
	parsed, _ := authorization.ParseUserRole(role)
	return userID, parsed, true
}

// GenerateToken signs a session token for userID. Token issuance lives with the
// identity provider in production; this is used by tooling and tests.
func GenerateToken(jwtSecret string, userID uint, role authorization.UserRole, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role.String(),
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}
