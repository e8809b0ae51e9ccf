package auth

import (
	"fmt"
	"strings"

	"farmops-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxFarmIDKey   = "farm_id"
)

// Identity is the caller as resolved from the token.
type Identity struct {
	UserID uint
	Role   models.UserRole
	FarmID *uint
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		claims, ok := token.Claims.(*JWTCustomClaims)
		if !ok || claims.UserID == 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "token claims could not be read")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxFarmIDKey, claims.FarmID)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role is missing from the request")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "you are not allowed to perform this action")
	}
}

// CurrentIdentity reads what JWTMiddleware stored on the request.
func CurrentIdentity(c *fiber.Ctx) (Identity, error) {
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok {
		return Identity{}, fiber.NewError(fiber.StatusUnauthorized, "user is missing from the request")
	}
	role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
	if !ok {
		return Identity{}, fiber.NewError(fiber.StatusUnauthorized, "role is missing from the request")
	}
	farmID, _ := c.Locals(CtxFarmIDKey).(*uint)
	return Identity{UserID: userID, Role: role, FarmID: farmID}, nil
}

// ResolveFarmID picks the tenant a request acts on: bound users always act on
// their own farm; an admin must name one explicitly.
func ResolveFarmID(id Identity, requested *uint) (uint, error) {
	if id.IsAdmin() {
		if requested == nil || *requested == 0 {
			return 0, fiber.NewError(fiber.StatusBadRequest, "farm_id is required for admin requests")
		}
		return *requested, nil
	}
	if id.FarmID == nil {
		return 0, fiber.NewError(fiber.StatusForbidden, "user is not bound to a farm")
	}
	if requested != nil && *requested != 0 && *requested != *id.FarmID {
		return 0, fiber.NewError(fiber.StatusForbidden, "you cannot act on another farm")
	}
	return *id.FarmID, nil
}
