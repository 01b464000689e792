package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tnqbao/gau-compute-dispatcher/http/controller"
	middlewares "github.com/tnqbao/gau-compute-dispatcher/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiRoutes := r.Group("/api/v1")
	{
		if middlewares.AuthEnabled(ctrl) {
			apiRoutes.Use(middles.AuthMiddleware)
		}

		apiRoutes.POST("/uploads/presign", ctrl.PresignUpload)

		jobRoutes := apiRoutes.Group("/jobs")
		{
			jobRoutes.POST("", ctrl.CreateJob)
			jobRoutes.GET("/:id", ctrl.GetJob)
			jobRoutes.POST("/:id/replay", ctrl.ReplayJob)
		}
	}
	return r
}
