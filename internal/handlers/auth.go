package handlers

import (
	"net/http"
	"strings"

	"github.com/SAP-F-2025/course-progression-service/internal/config"
	"github.com/SAP-F-2025/course-progression-service/internal/models"
	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
)

const (
	sessionContextKey = "session"
	userIDContextKey  = "user_id"
)

// TokenParser verifies a bearer token issued by casdoor
type TokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// NewCasdoorParser returns a casdoor client configured for token verification
func NewCasdoorParser(cfg config.CasdoorConfig) TokenParser {
	return casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.OrganizationName,
		cfg.ApplicationName,
	)
}

// RoleMapper turns casdoor roles into an engine role
type RoleMapper struct {
	admin   map[string]struct{}
	teacher map[string]struct{}
}

func NewRoleMapper(cfg config.CasdoorConfig) RoleMapper {
	return RoleMapper{
		admin:   toSet(cfg.AdminRoles),
		teacher: toSet(cfg.TeacherRoles),
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[strings.ToLower(strings.TrimSpace(value))] = struct{}{}
	}
	return set
}

// Role picks the most privileged role the user holds
func (m RoleMapper) Role(user casdoorsdk.User) models.UserRole {
	if user.IsAdmin {
		return models.RoleAdmin
	}
	role := models.RoleStudent
	for _, r := range user.Roles {
		if r == nil {
			continue
		}
		name := strings.ToLower(r.Name)
		if _, ok := m.admin[name]; ok {
			return models.RoleAdmin
		}
		if _, ok := m.teacher[name]; ok {
			role = models.RoleTeacher
		}
	}
	return role
}

// SessionFromClaims builds the explicit session context handed to the engine
func (m RoleMapper) SessionFromClaims(claims *casdoorsdk.Claims) *models.Session {
	learnerID := claims.User.Id
	if learnerID == "" {
		learnerID = claims.User.Owner + "/" + claims.User.Name
	}
	name := claims.User.DisplayName
	if name == "" {
		name = claims.User.Name
	}

	session := &models.Session{
		LearnerID:   learnerID,
		LearnerName: name,
		Role:        m.Role(claims.User),
	}
	if claims.RegisteredClaims.ExpiresAt != nil {
		session.ExpiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}
	return session
}

// AuthMiddleware verifies the bearer token and stores the session in the gin context
func AuthMiddleware(parser TokenParser, roles RoleMapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing bearer token",
				Code:    "unauthorized",
			})
			return
		}

		claims, err := parser.ParseJwtToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid token",
				Details: err.Error(),
				Code:    "unauthorized",
			})
			return
		}

		session := roles.SessionFromClaims(claims)
		c.Set(sessionContextKey, session)
		c.Set(userIDContextKey, session.LearnerID)
		c.Next()
	}
}
