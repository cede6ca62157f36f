package images

import (
	"net/http"

	"github.com/ambdigitalagency/hivepost/internal/middleware"
	"github.com/ambdigitalagency/hivepost/internal/services"
	"github.com/ambdigitalagency/hivepost/internal/utils"

	"github.com/gin-gonic/gin"
)

// Batches is the batch service used by the handlers; main wires the real
// one, tests swap in fakes.
var Batches *services.BatchService

// GenerateCandidates godoc
// @Summary Generate candidate images for a post
// @Description Runs the candidate stage and streams NDJSON progress events (start/image/error/done)
// @Tags images
// @Produce json
// @Param id path string true "Business ID"
// @Param postId path string true "Post ID"
// @Success 200 {string} string "application/x-ndjson event stream"
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 429 {object} utils.Response
// @Failure 503 {object} utils.Response
// @Router /business/{id}/posts/{postId}/images/candidates [post]
func GenerateCandidates(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, utils.NewAppErrorResponse(utils.ErrUnauthorized()))
		return
	}

	run, appErr := Batches.PrepareCandidates(userID, c.Param("id"), c.Param("postId"))
	if appErr != nil {
		c.JSON(appErr.Status, utils.NewAppErrorResponse(appErr))
		return
	}

	// Preconditions passed; from here progress is streamed and failures ride
	// inside the done event.
	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	stream := services.NewProgressStream(&services.NDJSONSink{W: c.Writer})
	Batches.RunCandidates(c.Request.Context(), run, stream)
}

// FinalizeImages godoc
// @Summary Finalize selected candidate images
// @Description Runs the finalize stage over the selection and streams NDJSON progress events
// @Tags images
// @Accept json
// @Produce json
// @Param id path string true "Business ID"
// @Param postId path string true "Post ID"
// @Param request body FinalizeRequest true "Selected candidate image ids"
// @Success 200 {string} string "application/x-ndjson event stream"
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 429 {object} utils.Response
// @Router /business/{id}/posts/{postId}/images/finalize [post]
func FinalizeImages(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, utils.NewAppErrorResponse(utils.ErrUnauthorized()))
		return
	}

	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	run, appErr := Batches.PrepareFinalize(userID, c.Param("id"), c.Param("postId"), req.SelectedImageIds)
	if appErr != nil {
		c.JSON(appErr.Status, utils.NewAppErrorResponse(appErr))
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	stream := services.NewProgressStream(&services.NDJSONSink{W: c.Writer})
	Batches.RunFinalize(c.Request.Context(), run, stream)
}
