package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"github.com/tnqbao/gau-compute-dispatcher/http/controller/dto"
	"github.com/tnqbao/gau-compute-dispatcher/utils"
)

// PresignUpload issues a short-lived URL for one direct PUT of the artifact.
func (ctrl *Controller) PresignUpload(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PresignUploadRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Upload] Invalid presign request: %v", err)
		utils.JSON400(c, "fileName and fileType are required")
		return
	}

	grant, err := ctrl.Infra.UploadAuthorizer.Authorize(ctx, req.FileName, req.FileType)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidRequest) {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Upload] Rejected presign request: %v", err)
			utils.JSON400(c, err.Error())
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Upload] Failed to presign upload: %v", err)
		utils.JSON500(c, "Failed to generate upload URL")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Upload] Issued upload grant for %s, expires at %s", grant.ArtifactReference(), grant.ExpiresAt)
	utils.JSON200(c, grant)
}
