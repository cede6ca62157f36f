package images

// FinalizeRequest carries the caller's ordered candidate selection.
type FinalizeRequest struct {
	SelectedImageIds []string `json:"selectedImageIds" binding:"required"`
}
