package services

import (
	"fmt"
	"mime/multipart"

	"github.com/medilink/medilink-api/utils"
)

// AttachmentService handles appointment attachments (referral letters, lab
// reports): validation, storage and retrieval
type AttachmentService interface {
	// UploadAttachment validates and stores an attachment, returns the storage key
	UploadAttachment(fileHeader *multipart.FileHeader) (string, error)

	// GetAttachmentURL generates a URL for accessing a stored attachment
	GetAttachmentURL(key string) (string, error)

	// DeleteAttachment removes an attachment from storage
	DeleteAttachment(key string) error
}

// S3AttachmentService implements AttachmentService using AWS S3 for storage
type S3AttachmentService struct {
	s3Service S3Interface
}

var attachmentServiceInstance AttachmentService

// InitAttachmentService initializes the attachment service with S3 backend
func InitAttachmentService(s3Service S3Interface) AttachmentService {
	attachmentServiceInstance = &S3AttachmentService{s3Service: s3Service}
	return attachmentServiceInstance
}

// GetAttachmentService returns the initialized attachment service instance
// (nil when the deployment has no S3 bucket configured; callers fall back to
// local disk storage)
func GetAttachmentService() AttachmentService {
	return attachmentServiceInstance
}

// SetAttachmentService sets the attachment service instance (primarily for testing)
func SetAttachmentService(service AttachmentService) {
	attachmentServiceInstance = service
}

// UploadAttachment validates and uploads an attachment to S3
func (s *S3AttachmentService) UploadAttachment(fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateAttachmentFile(fileHeader); err != nil {
		return "", err
	}

	key, err := s.s3Service.UploadFile(fileHeader)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}
	return key, nil
}

// GetAttachmentURL generates a presigned URL for accessing an attachment
func (s *S3AttachmentService) GetAttachmentURL(key string) (string, error) {
	if key == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(key)
	if err != nil {
		return "", fmt.Errorf("failed to generate attachment URL: %w", err)
	}
	return url, nil
}

// DeleteAttachment deletes an attachment from S3
func (s *S3AttachmentService) DeleteAttachment(key string) error {
	if key == "" {
		return nil
	}

	if err := s.s3Service.DeleteFile(key); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}
