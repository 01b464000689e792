package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/utils"
)

// TimestampTolerance bounds clock skew for HMAC-signed requests
const TimestampTolerance = 300 * time.Second

// AuthMiddleware accepts either a Bearer JWT or an HMAC signature made with
// the service key.
func AuthMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if strings.HasPrefix(authHeader, "HMAC ") {
			handleHMACAuth(c, cfg, authHeader)
			return
		}
		handleJWTAuth(c, cfg)
	}
}

func handleJWTAuth(c *gin.Context, cfg *config.EnvConfig) {
	if cfg.JWT.SecretKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Bearer authentication is not enabled"})
		c.Abort()
		return
	}

	tokenStr := utils.ExtractToken(c)
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
		c.Abort()
		return
	}

	parsedToken, err := utils.ParseToken(tokenStr, cfg)
	if err != nil || !parsedToken.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		c.Abort()
		return
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
		c.Abort()
		return
	}
	if err := utils.InjectClaimsToContext(c, claims); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid claims"})
		c.Abort()
		return
	}

	c.Next()
}

// handleHMACAuth verifies "Authorization: HMAC <accessKey>:<signature>" with X-Timestamp.
func handleHMACAuth(c *gin.Context, cfg *config.EnvConfig, authHeader string) {
	accessKey, signature, ok := utils.ParseHMACHeader(authHeader)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid HMAC authorization format. Expected: HMAC <accessKey>:<signature>"})
		c.Abort()
		return
	}

	if cfg.ServiceAuth.AccessKey == "" || cfg.ServiceAuth.SecretKey == "" || accessKey != cfg.ServiceAuth.AccessKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid access key"})
		c.Abort()
		return
	}

	var bodyBytes []byte
	if c.Request.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			c.Abort()
			return
		}
		// Restore body for subsequent handlers
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}

	err := utils.VerifyHMACRequest(
		cfg.ServiceAuth.SecretKey,
		signature,
		c.Request.Method,
		c.Request.URL.Path,
		c.GetHeader("X-Timestamp"),
		bodyBytes,
		time.Now(),
		TimestampTolerance,
	)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		c.Abort()
		return
	}

	c.Set("user_id", accessKey)
	c.Set("auth_method", "hmac")
	c.Next()
}
