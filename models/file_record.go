package models

// FileRecord describes an uploaded PDF. It is derived from the upload directory on every read.
type FileRecord struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
}
