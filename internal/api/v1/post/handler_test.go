package post_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ambdigitalagency/hivepost/internal/api/v1/post"
	"github.com/ambdigitalagency/hivepost/internal/database"
	"github.com/ambdigitalagency/hivepost/internal/middleware"
	"github.com/ambdigitalagency/hivepost/internal/models"
	"github.com/ambdigitalagency/hivepost/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB() {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.Migrator().DropTable(&models.Business{}, &models.Post{}, &models.ImageBatch{}, &models.PostImage{})
	if err := db.AutoMigrate(&models.Business{}, &models.Post{}, &models.ImageBatch{}, &models.PostImage{}); err != nil {
		panic("failed to migrate database")
	}

	database.DB = db
}

type fakeStorage struct{}

func (fakeStorage) UploadAsset(path string, data []byte, contentType string) (string, error) {
	return path, nil
}

func (fakeStorage) PublicURL(storageKey string) string {
	return "https://cdn.example.com/" + storageKey
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	os.Setenv("JWT_SECRET", "test-secret")

	post.Storage = fakeStorage{}

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware())
	post.RegisterRoutes(v1)
	return r
}

func authHeader(t *testing.T, userID uint) string {
	t.Helper()
	token, err := utils.GenerateToken(userID)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return "Bearer " + token
}

func seedPost(userID uint, status models.PostStatus) (models.Business, models.Post) {
	business := models.Business{UserID: userID, Name: "Sunrise Bakery"}
	database.DB.Create(&business)

	caption := "caption"
	p := models.Post{BusinessID: business.ID, Status: status, CaptionText: &caption}
	database.DB.Create(&p)
	return business, p
}

func TestListImages(t *testing.T) {
	setupTestDB()
	r := setupRouter(t)
	business, p := seedPost(1, models.PostStatusImagesPending)

	batch := models.ImageBatch{PostID: p.ID, Stage: models.BatchStageCandidate, Status: models.BatchStatusSucceeded}
	database.DB.Create(&batch)
	cand := models.PostImage{PostID: p.ID, BatchID: batch.ID, Stage: models.BatchStageCandidate, StorageKey: "k/cand.png"}
	database.DB.Create(&cand)
	final := models.PostImage{PostID: p.ID, BatchID: batch.ID, Stage: models.BatchStageFinal,
		StorageKey: "k/final.png", Selected: true, SourceCandidateID: &cand.ID}
	database.DB.Create(&final)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET",
		fmt.Sprintf("/api/v1/business/%s/posts/%s/images", business.ID, p.ID), nil)
	req.Header.Set("Authorization", authHeader(t, 1))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status int                 `json:"status"`
		Data   post.ImagesResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, p.ID, resp.Data.PostID)
	assert.Equal(t, string(models.PostStatusImagesPending), resp.Data.Status)
	assert.Len(t, resp.Data.Images, 2)

	byStage := map[string]post.ImageView{}
	for _, v := range resp.Data.Images {
		byStage[v.Stage] = v
		assert.Contains(t, v.URL, "https://cdn.example.com/")
	}
	assert.False(t, byStage["candidate"].Selected)
	assert.True(t, byStage["final"].Selected)
	assert.Equal(t, cand.ID, *byStage["final"].SourceCandidateID)
}

func TestListImages_OtherUsersBusiness(t *testing.T) {
	setupTestDB()
	r := setupRouter(t)
	business, p := seedPost(7, models.PostStatusImagesPending)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET",
		fmt.Sprintf("/api/v1/business/%s/posts/%s/images", business.ID, p.ID), nil)
	req.Header.Set("Authorization", authHeader(t, 1))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMarkUsed_RequiresReadyPost(t *testing.T) {
	setupTestDB()
	r := setupRouter(t)
	business, p := seedPost(1, models.PostStatusImagesPending)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST",
		fmt.Sprintf("/api/v1/business/%s/posts/%s/mark-used", business.ID, p.ID), nil)
	req.Header.Set("Authorization", authHeader(t, 1))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp utils.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, string(utils.CodePreconditionFailed), resp.Code)

	var updated models.Post
	database.DB.First(&updated, "id = ?", p.ID)
	assert.Equal(t, models.PostStatusImagesPending, updated.Status)
}

func TestMarkUsed_ExportsReadyPost(t *testing.T) {
	setupTestDB()
	r := setupRouter(t)
	business, p := seedPost(1, models.PostStatusReady)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST",
		fmt.Sprintf("/api/v1/business/%s/posts/%s/mark-used", business.ID, p.ID), nil)
	req.Header.Set("Authorization", authHeader(t, 1))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Post
	database.DB.First(&updated, "id = ?", p.ID)
	assert.Equal(t, models.PostStatusExported, updated.Status)
}

func TestMarkUsed_Unauthorized(t *testing.T) {
	setupTestDB()
	r := setupRouter(t)
	business, p := seedPost(1, models.PostStatusReady)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST",
		fmt.Sprintf("/api/v1/business/%s/posts/%s/mark-used", business.ID, p.ID), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
