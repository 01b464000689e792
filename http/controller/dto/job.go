package dto

type PresignUploadRequestDTO struct {
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
}

type CreateJobRequestDTO struct {
	TextInput string `json:"textInput" binding:"required,min=3"`
	S3Path    string `json:"s3Path" binding:"required"`
}
