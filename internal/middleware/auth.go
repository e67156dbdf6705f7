package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ViewerContextKey = "viewer_id"
	AdminContextKey  = "is_admin"
)

var jwtSecret string

// Claims represents JWT claims
type Claims struct {
	ViewerID string `json:"viewer_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// SetJWTSecret sets the JWT secret for the middleware
func SetJWTSecret(secret string) {
	jwtSecret = secret
}

func parseToken(tokenString string) (*Claims, bool) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, false
	}
	return claims, true
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// JWTAuth middleware validates JWT tokens and requires a signed-in viewer
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, ok := parseToken(tokenString)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ViewerContextKey, claims.ViewerID)
		c.Set(AdminContextKey, claims.Role == "admin")
		c.Next()
	}
}

// OptionalAuth attaches viewer identity when a valid token is present but
// lets anonymous requests through. Free content plays without sign-in, so
// session creation and catalog routes use this instead of JWTAuth.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			if claims, valid := parseToken(tokenString); valid {
				c.Set(ViewerContextKey, claims.ViewerID)
				c.Set(AdminContextKey, claims.Role == "admin")
			}
		}
		c.Next()
	}
}

// AdminOnly requires a valid token carrying the admin role
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, valid := parseToken(tokenString)
		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		if claims.Role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Set(ViewerContextKey, claims.ViewerID)
		c.Set(AdminContextKey, true)
		c.Next()
	}
}

// GenerateToken generates a JWT token for a viewer
func GenerateToken(viewerID, email, role string, expiresIn time.Duration) (string, error) {
	claims := Claims{
		ViewerID: viewerID,
		Email:    email,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// GetViewerID retrieves the viewer ID from the context. The second return
// is false for anonymous requests.
func GetViewerID(c *gin.Context) (string, bool) {
	viewerID, exists := c.Get(ViewerContextKey)
	if !exists {
		return "", false
	}

	viewerIDStr, ok := viewerID.(string)
	if !ok || viewerIDStr == "" {
		return "", false
	}
	return viewerIDStr, true
}
