package domain

import "time"

// Upload is the ownership link between a principal and an object-store image reference.
type Upload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UploadWithResult joins an upload with its recognition result, if one exists.
type UploadWithResult struct {
	Upload
	Result *RecognitionResult `json:"result"`
}
