package utils

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tnqbao/gau-compute-dispatcher/config"
)

func ExtractToken(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}

func ParseToken(tokenString string, config *config.EnvConfig) (*jwt.Token, error) {
	secret := []byte(config.JWT.SecretKey)
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{config.JWT.Algorithm}))
}

// InjectClaimsToContext copies the caller identity into the gin context.
func InjectClaimsToContext(c *gin.Context, claims jwt.MapClaims) error {
	subject, ok := claims["user_id"].(string)
	if !ok || subject == "" {
		subject, ok = claims["sub"].(string)
	}
	if !ok || subject == "" {
		return errors.New("token has no subject")
	}
	c.Set("user_id", subject)
	c.Set("auth_method", "jwt")
	return nil
}
