package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/medilink-api/config"
	"github.com/medilink/medilink-api/models"
)

func TestListDoctors(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	cardiologist := models.User{Auth0ID: "auth0|doctor1", Name: "Dr. Hart", Email: "hart@example.com", Role: "doctor"}
	newDoctor := models.User{Auth0ID: "auth0|doctor2", Name: "Dr. New", Email: "new@example.com", Role: "doctor"}
	patient := models.User{Auth0ID: "auth0|patient1", Name: "Pat Patient", Email: "pat@example.com", Role: "patient"}
	require.NoError(t, db.Create(&cardiologist).Error)
	require.NoError(t, db.Create(&newDoctor).Error)
	require.NoError(t, db.Create(&patient).Error)

	require.NoError(t, db.Create(&models.DoctorDetail{
		UserID:          cardiologist.ID,
		Specialization:  "Cardiology",
		Qualification:   "MD",
		ExperienceYears: 12,
	}).Error)

	router := setupTestRouter()
	router.GET("/doctors", ListDoctors)

	req, _ := http.NewRequest(http.MethodGet, "/doctors", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].([]interface{})
	// Patients never appear in the directory
	require.Len(t, data, 2)

	first := data[0].(map[string]interface{})
	assert.Equal(t, "Dr. Hart", first["name"])
	assert.Equal(t, "Cardiology", first["specialization"])
	assert.Equal(t, float64(12), first["experience_years"])

	// A doctor without a profile row falls back to the catch-all
	second := data[1].(map[string]interface{})
	assert.Equal(t, "General Medicine", second["specialization"])
}

func TestGetDoctor(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	doctor := models.User{Auth0ID: "auth0|doctor1", Name: "Dr. Who", Email: "doc@example.com", Role: "doctor"}
	patient := models.User{Auth0ID: "auth0|patient1", Name: "Pat Patient", Email: "pat@example.com", Role: "patient"}
	require.NoError(t, db.Create(&doctor).Error)
	require.NoError(t, db.Create(&patient).Error)

	router := setupTestRouter()
	router.GET("/doctors/:id", GetDoctor)

	t.Run("Returns the doctor", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/doctors/%d", doctor.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "Dr. Who", data["name"])
	})

	t.Run("A patient id is 404", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, fmt.Sprintf("/doctors/%d", patient.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateMyDoctorDetail(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	doctor := models.User{Auth0ID: "auth0|doctor1", Name: "Dr. Who", Email: "doc@example.com", Role: "doctor"}
	patient := models.User{Auth0ID: "auth0|patient1", Name: "Pat Patient", Email: "pat@example.com", Role: "patient"}
	require.NoError(t, db.Create(&doctor).Error)
	require.NoError(t, db.Create(&patient).Error)
	require.NoError(t, db.Create(&models.DoctorDetail{UserID: doctor.ID}).Error)

	update := func(auth0ID, role string, body map[string]interface{}) *httptest.ResponseRecorder {
		router := setupTestRouter()
		router.PUT("/doctors/me", mockAuthMiddleware(auth0ID, role, "mock-token"), UpdateMyDoctorDetail)

		payload, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPut, "/doctors/me", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Doctor updates their profile", func(t *testing.T) {
		w := update(doctor.Auth0ID, "doctor", map[string]interface{}{
			"specialization":   "Neurology",
			"experience_years": 8,
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var detail models.DoctorDetail
		require.NoError(t, db.Where("user_id = ?", doctor.ID).Take(&detail).Error)
		assert.Equal(t, "Neurology", detail.Specialization)
		assert.Equal(t, 8, detail.ExperienceYears)
	})

	t.Run("Patient cannot update doctor details", func(t *testing.T) {
		w := update(patient.Auth0ID, "patient", map[string]interface{}{
			"specialization": "Quackery",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
