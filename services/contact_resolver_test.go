package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/medilink/medilink-api/models"
)

func createTestAppointment(t *testing.T, db *gorm.DB, patientID, doctorID uint) models.Appointment {
	t.Helper()
	appointment := models.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    "confirmed",
	}
	require.NoError(t, db.Create(&appointment).Error)
	return appointment
}

func TestContactsDeduplicatesCounterparts(t *testing.T) {
	db := setupStoreTestDB(t)
	resolver := NewContactResolver(db, NewMessageStore(db))

	patient := createTestUser(t, db, "auth0|patient1", "Pat Patient", "patient")
	cardiologist := createTestUser(t, db, "auth0|doctor1", "Dr. Hart", "doctor")
	dermatologist := createTestUser(t, db, "auth0|doctor2", "Dr. Skin", "doctor")

	require.NoError(t, db.Create(&models.DoctorDetail{
		UserID:         cardiologist.ID,
		Specialization: "Cardiology",
	}).Error)

	// Three appointments, two distinct doctors: the duplicate collapses into
	// the first occurrence
	createTestAppointment(t, db, patient.ID, cardiologist.ID)
	createTestAppointment(t, db, patient.ID, dermatologist.ID)
	createTestAppointment(t, db, patient.ID, cardiologist.ID)

	contacts, err := resolver.Contacts(patient.ID, "patient")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, cardiologist.ID, contacts[0].ID)
	assert.Equal(t, dermatologist.ID, contacts[1].ID)
	assert.Equal(t, "Cardiology", contacts[0].Specialty)
	// No profile row falls back to the catch-all specialty
	assert.Equal(t, "General Medicine", contacts[1].Specialty)
}

func TestContactsPreview(t *testing.T) {
	db := setupStoreTestDB(t)
	store := NewMessageStore(db)
	resolver := NewContactResolver(db, store)

	patient := createTestUser(t, db, "auth0|patient1", "Pat Patient", "patient")
	doctor := createTestUser(t, db, "auth0|doctor1", "Dr. Who", "doctor")
	createTestAppointment(t, db, patient.ID, doctor.ID)

	// Before any message the preview is the placeholder
	contacts, err := resolver.Contacts(patient.ID, "patient")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, NoMessagesPreview, contacts[0].LastMessage)
	assert.Nil(t, contacts[0].LastMessageAt)

	_, err = store.Send(patient.ID, doctor.ID, "older")
	require.NoError(t, err)
	latest, err := store.Send(doctor.ID, patient.ID, "newest")
	require.NoError(t, err)

	contacts, err = resolver.Contacts(patient.ID, "patient")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "newest", contacts[0].LastMessage)
	require.NotNil(t, contacts[0].LastMessageAt)
	assert.Equal(t, latest.CreatedAt.Unix(), contacts[0].LastMessageAt.Unix())
}

func TestContactsDoctorSeesPatients(t *testing.T) {
	db := setupStoreTestDB(t)
	resolver := NewContactResolver(db, NewMessageStore(db))

	doctor := createTestUser(t, db, "auth0|doctor1", "Dr. Who", "doctor")
	patientA := createTestUser(t, db, "auth0|patient1", "Pat A", "patient")
	patientB := createTestUser(t, db, "auth0|patient2", "Pat B", "patient")

	createTestAppointment(t, db, patientA.ID, doctor.ID)
	createTestAppointment(t, db, patientB.ID, doctor.ID)

	contacts, err := resolver.Contacts(doctor.ID, "doctor")
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, patientA.ID, contacts[0].ID)
	assert.Equal(t, patientB.ID, contacts[1].ID)
	// Patients carry no specialty
	assert.Empty(t, contacts[0].Specialty)
}

func TestContactsNoAppointments(t *testing.T) {
	db := setupStoreTestDB(t)
	resolver := NewContactResolver(db, NewMessageStore(db))

	patient := createTestUser(t, db, "auth0|patient1", "Pat Patient", "patient")

	contacts, err := resolver.Contacts(patient.ID, "patient")
	require.NoError(t, err)
	assert.Empty(t, contacts, "No appointments means an empty contact list, not an error")
}

func TestContactsAdminIsEmpty(t *testing.T) {
	db := setupStoreTestDB(t)
	resolver := NewContactResolver(db, NewMessageStore(db))

	admin := createTestUser(t, db, "auth0|admin1", "Ad Min", "admin")

	contacts, err := resolver.Contacts(admin.ID, "admin")
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestContactsFailureDegradesToEmpty(t *testing.T) {
	db := setupStoreTestDB(t)
	resolver := NewContactResolver(db, NewMessageStore(db))

	require.NoError(t, db.Migrator().DropTable(&models.Appointment{}))

	contacts, err := resolver.Contacts(1, "patient")
	assert.True(t, errors.Is(err, ErrFetchFailed), "expected ErrFetchFailed, got %v", err)
	assert.NotNil(t, contacts)
	assert.Empty(t, contacts)
}

func TestAppointmentExists(t *testing.T) {
	db := setupStoreTestDB(t)

	patient := createTestUser(t, db, "auth0|patient1", "Pat Patient", "patient")
	doctor := createTestUser(t, db, "auth0|doctor1", "Dr. Who", "doctor")
	stranger := createTestUser(t, db, "auth0|doctor2", "Dr. Strange", "doctor")

	createTestAppointment(t, db, patient.ID, doctor.ID)

	// Either orientation of the pair matches
	exists, err := AppointmentExists(db, patient.ID, doctor.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = AppointmentExists(db, doctor.ID, patient.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = AppointmentExists(db, patient.ID, stranger.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}
