package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/medilink/medilink-api/models"
)

// NoMessagesPreview is the placeholder preview for a contact the user has
// never exchanged messages with.
const NoMessagesPreview = "No messages yet"

// Contact is a counterpart identity plus denormalized display data and a
// preview of the most recent message, as surfaced to the contact list.
type Contact struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Specialty     string     `json:"specialty,omitempty"` // doctors only
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// ContactResolver derives the set of people a user may message. The only
// source of contacts is the appointments table: every appointment row links
// a patient and a doctor, and each distinct counterpart becomes one contact.
type ContactResolver struct {
	db    *gorm.DB
	store *MessageStore
}

// NewContactResolver creates a resolver over the given database
func NewContactResolver(db *gorm.DB, store *MessageStore) *ContactResolver {
	return &ContactResolver{db: db, store: store}
}

// Contacts returns the distinct counterparts the user may converse with, in
// the order their appointment rows are discovered (not by preview recency).
// Duplicate appointments with the same counterpart collapse into the first
// occurrence. A user with no appointments gets an empty list, which is a
// valid terminal state. On a gateway failure the resolver logs, returns an
// empty list and wraps ErrFetchFailed so the caller can degrade to an
// empty-state rendering instead of failing the whole session.
func (r *ContactResolver) Contacts(userID uint, role string) ([]Contact, error) {
	query := r.db.Preload("Patient").Preload("Doctor")
	switch role {
	case "patient":
		query = query.Where("patient_id = ?", userID)
	case "doctor":
		query = query.Where("doctor_id = ?", userID)
	default:
		// Admins never appear on either side of an appointment
		return []Contact{}, nil
	}

	var appointments []models.Appointment
	if err := query.Order("id ASC").Find(&appointments).Error; err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to resolve contacts")
		return []Contact{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	seen := make(map[uint]bool)
	contacts := make([]Contact, 0, len(appointments))
	for _, appointment := range appointments {
		counterpart := appointment.Doctor
		if role == "doctor" {
			counterpart = appointment.Patient
		}
		if counterpart.ID == 0 || seen[counterpart.ID] {
			continue
		}
		seen[counterpart.ID] = true

		contact := Contact{
			ID:          counterpart.ID,
			Name:        counterpart.Name,
			Email:       counterpart.Email,
			LastMessage: NoMessagesPreview,
		}
		if counterpart.Role == "doctor" {
			contact.Specialty = r.specialtyFor(counterpart.ID)
		}

		// Preview failures degrade a single contact, not the whole list
		if last, err := r.store.LastMessage(userID, counterpart.ID); err == nil && last != nil {
			contact.LastMessage = last.Body
			at := last.CreatedAt
			contact.LastMessageAt = &at
		}

		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// specialtyFor looks up a doctor's specialization, falling back to the
// catch-all shown by the contact list when no profile row exists
func (r *ContactResolver) specialtyFor(doctorID uint) string {
	var detail models.DoctorDetail
	err := r.db.Where("user_id = ?", doctorID).Take(&detail).Error
	if err != nil || detail.Specialization == "" {
		return "General Medicine"
	}
	return detail.Specialization
}

// AppointmentExists reports whether any appointment row links the two users
// in either patient/doctor orientation. It backs the relationship-gated
// messaging policy.
func AppointmentExists(db *gorm.DB, userA, userB uint) (bool, error) {
	var appointment models.Appointment
	err := db.
		Where("(patient_id = ? AND doctor_id = ?) OR (patient_id = ? AND doctor_id = ?)",
			userA, userB, userB, userA).
		Take(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return true, nil
}
