package post

import (
	"fmt"
	"net/http"

	"github.com/ambdigitalagency/hivepost/internal/database"
	"github.com/ambdigitalagency/hivepost/internal/middleware"
	"github.com/ambdigitalagency/hivepost/internal/models"
	"github.com/ambdigitalagency/hivepost/internal/services"
	"github.com/ambdigitalagency/hivepost/internal/utils"

	"github.com/gin-gonic/gin"
)

// Storage resolves storage keys to URLs; wired by main, faked in tests.
var Storage services.AssetStorage

func loadOwnedPost(c *gin.Context) (*models.Post, *utils.AppError) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return nil, utils.ErrUnauthorized()
	}

	var business models.Business
	if err := database.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&business).Error; err != nil {
		return nil, utils.ErrNotFound("Business")
	}

	var p models.Post
	if err := database.DB.Where("id = ? AND business_id = ?", c.Param("postId"), business.ID).First(&p).Error; err != nil {
		return nil, utils.ErrNotFound("Post")
	}
	return &p, nil
}

// ListImages godoc
// @Summary List a post's generated images
// @Tags posts
// @Produce json
// @Param id path string true "Business ID"
// @Param postId path string true "Post ID"
// @Success 200 {object} utils.Response{data=ImagesResponse}
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /business/{id}/posts/{postId}/images [get]
func ListImages(c *gin.Context) {
	p, appErr := loadOwnedPost(c)
	if appErr != nil {
		c.JSON(appErr.Status, utils.NewAppErrorResponse(appErr))
		return
	}

	var rows []models.PostImage
	database.DB.Where("post_id = ?", p.ID).Order("created_at asc").Find(&rows)

	views := make([]ImageView, 0, len(rows))
	for _, r := range rows {
		views = append(views, ImageView{
			ID:                r.ID,
			Stage:             string(r.Stage),
			URL:               Storage.PublicURL(r.StorageKey),
			Selected:          r.Selected,
			SourceCandidateID: r.SourceCandidateID,
		})
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Images retrieved successfully", ImagesResponse{
		PostID: p.ID,
		Status: string(p.Status),
		Images: views,
	}))
}

// MarkUsed godoc
// @Summary Mark a ready post as exported
// @Tags posts
// @Produce json
// @Param id path string true "Business ID"
// @Param postId path string true "Post ID"
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /business/{id}/posts/{postId}/mark-used [post]
func MarkUsed(c *gin.Context) {
	p, appErr := loadOwnedPost(c)
	if appErr != nil {
		c.JSON(appErr.Status, utils.NewAppErrorResponse(appErr))
		return
	}

	if p.Status != models.PostStatusReady {
		precond := utils.ErrPrecondition("Post must be ready before it can be marked used",
			"Finalize images first.")
		c.JSON(precond.Status, utils.NewAppErrorResponse(precond))
		return
	}

	if err := database.DB.Model(&models.Post{}).Where("id = ?", p.ID).
		Update("status", models.PostStatusExported).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, err.Error()))
		return
	}
	p.Status = models.PostStatusExported

	userID, _ := middleware.CurrentUserID(c)
	services.RecordEvent("user", fmt.Sprint(userID), "post_marked_used", map[string]interface{}{
		"business_id": c.Param("id"), "post_id": p.ID,
	})

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Post marked used", p))
}
