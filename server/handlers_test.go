package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carsafe/carsafe/server/auth/key"
	"github.com/carsafe/carsafe/server/models"
	"github.com/carsafe/carsafe/server/work"
	"github.com/carsafe/carsafe/shared"
	"github.com/stretchr/testify/assert"
)

func newTestApp(t *testing.T) *app {
	ds, err := models.InitializeTestDb()
	assert.Nil(t, err)

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	assert.Nil(t, err)

	keyPair := &key.KeyPair{
		Kid:        "test-key-id",
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
	}

	testApp, err := newApp(ds, keyPair, work.NewWorkerAdapter(ds, "UTC"), &shared.ServerConfig{})
	assert.Nil(t, err)
	assert.Nil(t, testApp.registerJobHandlers())

	return testApp
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reqBody bytes.Buffer
	if body != nil {
		assert.Nil(t, json.NewEncoder(&reqBody).Encode(body))
	}

	req := httptest.NewRequest(method, path, &reqBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	response := make(map[string]interface{})
	json.Unmarshal(recorder.Body.Bytes(), &response)

	return recorder, response
}

func signUpTestUser(t *testing.T, router http.Handler, email string) string {
	recorder, response := doRequest(t, router, "POST", "/signup", "", map[string]string{
		"email":    email,
		"password": "very-secure",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	token := response["data"].(map[string]interface{})["token"].(string)
	assert.NotEmpty(t, token)

	return token
}

func TestSignUpAndLogIn(t *testing.T) {
	router := newTestApp(t).router()

	signUpTestUser(t, router, "jane@example.com")

	// Duplicate signup is rejected
	recorder, _ := doRequest(t, router, "POST", "/signup", "", map[string]string{
		"email":    "jane@example.com",
		"password": "very-secure",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// Wrong password
	recorder, _ = doRequest(t, router, "POST", "/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Unknown email gets the same generic failure
	recorder, _ = doRequest(t, router, "POST", "/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "very-secure",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder, response := doRequest(t, router, "POST", "/login", "", map[string]string{
		"email":    "jane@example.com",
		"password": "very-secure",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	sessionData := response["data"].(map[string]interface{})
	assert.NotEmpty(t, sessionData["token"])
	// The session payload never leaks the password hash
	assert.NotContains(t, sessionData["user"], "password")
}

func TestOwnerRoutesRequireSession(t *testing.T) {
	router := newTestApp(t).router()

	recorder, _ := doRequest(t, router, "GET", "/owner/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder, _ = doRequest(t, router, "GET", "/owner/profile", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestProfileLifecycle(t *testing.T) {
	router := newTestApp(t).router()
	token := signUpTestUser(t, router, "jane@example.com")

	// No profile yet: an empty, successful response
	recorder, response := doRequest(t, router, "GET", "/owner/profile", token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Nil(t, response["data"])

	// Saving without a single valid number fails
	recorder, _ = doRequest(t, router, "POST", "/owner/profile", token, map[string]interface{}{
		"display_name": "Jane",
		"contacts":     []map[string]string{{"number": "", "label": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	// First valid save mints the public id
	recorder, response = doRequest(t, router, "POST", "/owner/profile", token, map[string]interface{}{
		"display_name": "Jane",
		"contacts":     []map[string]string{{"number": "+1555", "label": "Mom"}},
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	profileData := response["data"].(map[string]interface{})
	publicID := profileData["public_id"].(string)
	assert.NotEmpty(t, publicID)
	assert.Equal(t, true, profileData["active"])

	// Editor view pads a single contact to two slots
	assert.Len(t, profileData["contacts"], 2)

	// Second save keeps the same public id
	recorder, response = doRequest(t, router, "POST", "/owner/profile", token, map[string]interface{}{
		"display_name": "Jane D.",
		"contacts":     []map[string]string{{"number": "+1666", "label": "Dad"}},
	})
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, publicID, response["data"].(map[string]interface{})["public_id"])
}

func TestUpsertProfileAcceptsLegacyStringContacts(t *testing.T) {
	router := newTestApp(t).router()
	token := signUpTestUser(t, router, "jane@example.com")

	recorder, response := doRequest(t, router, "POST", "/owner/profile", token, map[string]interface{}{
		"display_name": "Jane",
		"contacts":     []string{"+1555", "+1666"},
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	savedContacts := response["data"].(map[string]interface{})["contacts"].([]interface{})
	assert.Equal(t, "Contact 1", savedContacts[0].(map[string]interface{})["label"])
	assert.Equal(t, "Contact 2", savedContacts[1].(map[string]interface{})["label"])
}

func TestPublicResolutionAndActiveGate(t *testing.T) {
	router := newTestApp(t).router()
	token := signUpTestUser(t, router, "jane@example.com")

	recorder, _ := doRequest(t, router, "GET", "/public/qr/no-such-id", "", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	_, response := doRequest(t, router, "POST", "/owner/profile", token, map[string]interface{}{
		"display_name": "Jane",
		"contacts":     []map[string]string{{"number": "+1555", "label": "Mom"}},
	})
	publicID := response["data"].(map[string]interface{})["public_id"].(string)

	// Anonymous resolve returns only the sanitized view
	recorder, response = doRequest(t, router, "GET", "/public/qr/"+publicID, "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	view := response["data"].(map[string]interface{})
	assert.Equal(t, "Jane", view["display_name"])
	assert.Len(t, view["contacts"], 1)
	assert.NotContains(t, view, "user_id")
	assert.NotContains(t, view, "id")

	// Owner turns the gate off
	recorder, _ = doRequest(t, router, "PUT", "/owner/profile/status", token, map[string]interface{}{"active": false})
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder, _ = doRequest(t, router, "GET", "/public/qr/"+publicID, "", nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	// And back on
	recorder, _ = doRequest(t, router, "PUT", "/owner/profile/status", token, map[string]interface{}{"active": true})
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder, _ = doRequest(t, router, "GET", "/public/qr/"+publicID, "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestUpdateProfileStatusValidation(t *testing.T) {
	router := newTestApp(t).router()
	token := signUpTestUser(t, router, "jane@example.com")

	// No profile to update yet
	recorder, _ := doRequest(t, router, "PUT", "/owner/profile/status", token, map[string]interface{}{"active": false})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Missing/invalid 'active' field
	recorder, _ = doRequest(t, router, "PUT", "/owner/profile/status", token, map[string]interface{}{"active": "nope"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestIncidentReporting(t *testing.T) {
	testApp := newTestApp(t)
	router := testApp.router()
	token := signUpTestUser(t, router, "jane@example.com")

	_, response := doRequest(t, router, "POST", "/owner/profile", token, map[string]interface{}{
		"display_name": "Jane",
		"contacts":     []map[string]string{{"number": "+1555", "label": "Mom"}},
	})
	publicID := response["data"].(map[string]interface{})["public_id"].(string)

	// Unknown QR id is rejected
	recorder, _ := doRequest(t, router, "POST", "/public/incidents", "", map[string]string{
		"public_id": "no-such-id",
		"location":  "Main St",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Deactivate the profile - incidents must still be accepted
	recorder, _ = doRequest(t, router, "PUT", "/owner/profile/status", token, map[string]interface{}{"active": false})
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder, response = doRequest(t, router, "POST", "/public/incidents", "", map[string]string{
		"public_id": publicID,
		"location":  "Main St & 5th",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	incidentID := response["data"].(map[string]interface{})["incident_id"].(string)
	assert.NotEmpty(t, incidentID)

	// A notification job was queued for the report
	job, err := testApp.ds.LastJob(models.ENQUEUED_JOB, false)
	assert.Nil(t, err)
	assert.Equal(t, fmt.Sprintf("notify-incident-%v", incidentID), job.Name)

	// The owner sees the report in their audit list
	recorder, response = doRequest(t, router, "GET", "/owner/incidents", token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	incidents := response["data"].([]interface{})
	assert.Len(t, incidents, 1)
	assert.Equal(t, "Main St & 5th", incidents[0].(map[string]interface{})["location"])
}

func TestHealthCheck(t *testing.T) {
	router := newTestApp(t).router()

	recorder, response := doRequest(t, router, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, true, response["success"])
}

func TestJWKSExposesPublicKey(t *testing.T) {
	router := newTestApp(t).router()

	recorder, response := doRequest(t, router, "GET", "/jwks.json", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, response["keys"], 1)
}
