package domain

import "time"

// LibraryEntry is a user-curated copy of a recognized question and its solution.
type LibraryEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UploadID  string    `json:"uploadId"`
	Question  string    `json:"question"`
	Solution  string    `json:"solution"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LibraryPatch carries the editable fields of a library entry; nil means unchanged.
type LibraryPatch struct {
	Question *string `json:"question,omitempty"`
	Solution *string `json:"solution,omitempty"`
}
