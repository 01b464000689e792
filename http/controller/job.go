package controller

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"github.com/tnqbao/gau-compute-dispatcher/http/controller/dto"
	"github.com/tnqbao/gau-compute-dispatcher/provision"
	"github.com/tnqbao/gau-compute-dispatcher/utils"
)

func (ctrl *Controller) CreateJob(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateJobRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Invalid create request: %v", err)
		utils.JSON400(c, "textInput (at least 3 characters) and s3Path are required")
		return
	}

	// Reject references the provisioner could never resolve.
	if _, err := provision.CanonicalArtifactLocator(req.S3Path); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Rejected s3Path %q: %v", req.S3Path, err)
		utils.JSON400(c, "s3Path must reference an uploaded .Input object")
		return
	}

	record := &entity.JobRecord{
		TextInput:         req.TextInput,
		ArtifactReference: req.S3Path,
	}
	if err := ctrl.Repository.JobRecordRepo.CreateWithEvent(record); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to store job: %v", err)
		utils.JSON500(c, "Failed to store job")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Created job %s for %s", record.ID, record.ArtifactReference)
	utils.JSON201(c, record)
}

func (ctrl *Controller) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if id == "" {
		utils.JSON400(c, "id is required")
		return
	}

	record, err := ctrl.Repository.JobRecordRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, entity.ErrJobNotFound) {
			utils.JSON404(c, "Job not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to load job %s: %v", id, err)
		utils.JSON500(c, "Failed to load job")
		return
	}

	utils.JSON200(c, record)
}

// ReplayJob re-dispatches a stored job by enqueueing a new created event.
func (ctrl *Controller) ReplayJob(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	event, err := ctrl.Repository.JobRecordRepo.Replay(id)
	if err != nil {
		if errors.Is(err, entity.ErrJobNotFound) {
			utils.JSON404(c, "Job not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to replay job %s: %v", id, err)
		utils.JSON500(c, "Failed to replay job")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Replay of job %s enqueued as event %s", id, event.ID)
	utils.JSON200(c, gin.H{"job_id": id, "event_id": event.ID.String()})
}
