package models

import (
	"time"

	"gorm.io/gorm"
)

// Appointment links a patient to a doctor. Besides driving the booking
// screens it is the relationship row that decides who may chat with whom.
type Appointment struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	PatientID       uint           `gorm:"not null;index" json:"patient_id"` // foreign key to users table
	Patient         User           `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	DoctorID        uint           `gorm:"not null;index" json:"doctor_id"` // foreign key to users table
	Doctor          User           `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
	Status          string         `gorm:"not null;default:'pending'" json:"status"` // pending, confirmed, cancelled, completed
	Reason          string         `json:"reason"`
	AttachmentS3Key *string        `json:"attachment_s3_key,omitempty"`     // nullable, set when a report is uploaded
	AttachmentURL   *string        `gorm:"-" json:"attachment_url,omitempty"` // computed field, presigned URL for the report
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Appointment model
func (Appointment) TableName() string {
	return "appointments"
}
