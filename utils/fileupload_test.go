package utils

import (
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAttachmentFile(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		size         int64
		expectedCode string
	}{
		{"Valid PDF", "referral.pdf", 1024, ""},
		{"Valid PNG", "scan.png", 1024, ""},
		{"Valid JPG", "photo.jpg", 1024, ""},
		{"Valid JPEG", "photo.jpeg", 1024, ""},
		{"Uppercase extension", "REPORT.PDF", 1024, ""},
		{"Executable rejected", "malware.exe", 1024, "INVALID_FILE_FORMAT"},
		{"No extension rejected", "mystery", 1024, "INVALID_FILE_FORMAT"},
		{"Oversized file rejected", "huge.pdf", MaxFileSize + 1, "FILE_TOO_LARGE"},
		{"File at size limit accepted", "exact.pdf", MaxFileSize, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := &multipart.FileHeader{
				Filename: tt.filename,
				Size:     tt.size,
			}

			err := ValidateAttachmentFile(header)
			if tt.expectedCode == "" {
				assert.NoError(t, err)
				return
			}

			uploadErr, ok := err.(*FileUploadError)
			if assert.True(t, ok, "expected *FileUploadError, got %T", err) {
				assert.Equal(t, tt.expectedCode, uploadErr.Code)
			}
		})
	}
}

func TestGetAttachmentURL(t *testing.T) {
	assert.Equal(t, "/api/v1/uploads/1024_scan.png", GetAttachmentURL("1024_scan.png"))
	assert.Equal(t, "", GetAttachmentURL(""))
}
