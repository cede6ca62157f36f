package post

// ImageView is one generated asset as the post detail view renders it.
type ImageView struct {
	ID                string  `json:"id"`
	Stage             string  `json:"stage"`
	URL               string  `json:"url"`
	Selected          bool    `json:"selected"`
	SourceCandidateID *string `json:"source_candidate_id,omitempty"`
}

// ImagesResponse exposes the pipeline's results for one post.
type ImagesResponse struct {
	PostID string      `json:"post_id"`
	Status string      `json:"status"`
	Images []ImageView `json:"images"`
}
