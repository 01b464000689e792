package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-compute-dispatcher/http/controller"
)

type Middlewares struct {
	CORSMiddleware gin.HandlerFunc
	AuthMiddleware gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	cors := CORSMiddleware(ctrl.Config.EnvConfig)
	auth := AuthMiddleware(ctrl.Config.EnvConfig)

	return &Middlewares{
		CORSMiddleware: cors,
		AuthMiddleware: auth,
	}, nil
}

// AuthEnabled reports whether any caller credential is configured. Without
// one the API is open, as the submission form expects.
func AuthEnabled(ctrl *controller.Controller) bool {
	env := ctrl.Config.EnvConfig
	return env.JWT.SecretKey != "" || (env.ServiceAuth.AccessKey != "" && env.ServiceAuth.SecretKey != "")
}
