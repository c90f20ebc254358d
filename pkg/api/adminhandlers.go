package api

import (
	"net/http"

	"fleetmon/pkg/facejob"
	"fleetmon/pkg/ingest"
	"fleetmon/pkg/liveness"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes on-demand sweep triggers and the facial-feature
// job status. These sit on an internal path; dashboard session auth is
// handled by the fronting admin subsystem.
type AdminHandler struct {
	pipeline *ingest.Pipeline
	monitor  *liveness.Monitor
	faceJob  *facejob.StatusReader
}

func NewAdminHandler(pipeline *ingest.Pipeline, monitor *liveness.Monitor, faceJob *facejob.StatusReader) *AdminHandler {
	return &AdminHandler{pipeline: pipeline, monitor: monitor, faceJob: faceJob}
}

// RunIngest triggers one ingestion sweep and returns its summary.
func (handler *AdminHandler) RunIngest(c *gin.Context) {
	summary, err := handler.pipeline.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RunLiveness triggers one liveness sweep.
func (handler *AdminHandler) RunLiveness(c *gin.Context) {
	if err := handler.monitor.Sweep(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "sweep complete"})
}

// FaceJobStatus reads the external encoding job's file contract.
func (handler *AdminHandler) FaceJobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, handler.faceJob.Status())
}
