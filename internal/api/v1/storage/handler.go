package storage

import (
	"net/http"

	"github.com/ambdigitalagency/hivepost/internal/services"
	"github.com/ambdigitalagency/hivepost/internal/utils"

	"github.com/gin-gonic/gin"
)

// GetUploadCredentials godoc
// @Summary Issue short-lived STS credentials for reference-material uploads
// @Tags storage
// @Produce json
// @Success 200 {object} utils.Response{data=services.STSCredentials}
// @Failure 500 {object} utils.Response
// @Router /storage/upload-credentials [get]
func GetUploadCredentials(c *gin.Context) {
	creds, err := services.GetUploadCredentials()
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Credentials issued", creds))
}
