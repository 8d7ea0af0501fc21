package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carsafe/carsafe/server/auth"
	"github.com/carsafe/carsafe/server/auth/key"
	"github.com/carsafe/carsafe/server/contacts"
	"github.com/carsafe/carsafe/server/models"
	"github.com/carsafe/carsafe/server/work"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// profilePayload is the owner-facing profile shape: contacts come back as
// the normalized, editor-padded sequence rather than the stored encoding.
type profilePayload struct {
	PublicID    string             `json:"public_id"`
	DisplayName string             `json:"display_name"`
	Contacts    []contacts.Contact `json:"contacts"`
	Active      bool               `json:"active"`
}

type sessionPayload struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func newProfilePayload(profile *models.Profile) *profilePayload {
	return &profilePayload{
		PublicID:    profile.PublicID,
		DisplayName: profile.DisplayName,
		Contacts:    profile.NormalizedContacts(),
		Active:      profile.Active,
	}
}

func healthCheck(rw http.ResponseWriter, r *http.Request) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]string{"status": "ok"}})
}

func (app *app) jwks(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := app.authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

func (app *app) signUp(rw http.ResponseWriter, r *http.Request) {
	user := models.User{}
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if errs := app.validate.Struct(user); errs != nil {
		writeResponse(rw, ResponsePayload{Errors: strings.Split(errs.Error(), "\n")}, http.StatusBadRequest)
		return
	}

	if _, err := app.ds.FindUserBy("email", user.Email); err == nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"user already exists"}}, http.StatusBadRequest)
		return
	}

	if err := app.ds.CreateUser(&user); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// Log the new owner in right away
	token, err := auth.EncodeJWT(auth.NewSessionClaims(fmt.Sprint(user.ID), user.Email), app.authKeyPair)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	user.Password = ""
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: sessionPayload{Token: token, User: &user}})
}

func (app *app) logIn(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	json.NewDecoder(r.Body).Decode(&data)

	passwordHash, err := app.ds.FindUserPassword(data["email"])
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if !auth.CheckPasswordHash(data["password"], passwordHash) {
		writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	user, err := app.ds.FindUserBy("email", data["email"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := auth.EncodeJWT(auth.NewSessionClaims(fmt.Sprint(user.ID), user.Email), app.authKeyPair)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: sessionPayload{Token: token, User: user}})
}

// findProfile returns the owner's profile, or an empty payload for an owner
// who has never saved one - that's an expected state, not an error.
func (app *app) findProfile(rw http.ResponseWriter, r *http.Request) {
	user, err := app.requestUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	profile, err := app.ds.FindProfileBy("user_id", user.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		json.NewEncoder(rw).Encode(ResponsePayload{Success: true})
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: newProfilePayload(profile)})
}

func (app *app) upsertProfile(rw http.ResponseWriter, r *http.Request) {
	payload := struct {
		DisplayName string          `json:"display_name"`
		Contacts    json.RawMessage `json:"contacts"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	submittedContacts, err := contacts.Decode(payload.Contacts)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"unable to parse contacts"}}, http.StatusBadRequest)
		return
	}

	user, err := app.requestUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	profile, err := app.ds.UpsertProfile(user.ID, payload.DisplayName, submittedContacts)
	if errors.Is(err, contacts.ErrEmptyContactSet) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: newProfilePayload(profile)})
}

func (app *app) updateProfileStatus(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]interface{})
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(data, map[string]bool{"active": true})
	active, ok := data["active"].(bool)
	if !ok {
		writeResponse(rw, ResponsePayload{Errors: []string{"a boolean 'active' field is required"}}, http.StatusBadRequest)
		return
	}

	user, err := app.requestUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	profile, err := app.ds.SetProfileActive(user.ID, active)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"no profile to update"}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: newProfilePayload(profile)})
}

func (app *app) listIncidents(rw http.ResponseWriter, r *http.Request) {
	user, err := app.requestUser(r)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	incidents, err := app.ds.IncidentsForUser(user.ID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: incidents})
}

// resolvePublicProfile serves an anonymous scanner. Unknown ids 404;
// deactivated profiles 403 - the owner's choice to turn the code off is
// deliberately visible to a denied requester.
func (app *app) resolvePublicProfile(rw http.ResponseWriter, r *http.Request) {
	publicID := mux.Vars(r)["public_id"]

	view, err := app.ds.ResolvePublicProfile(publicID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"QR code not found"}}, http.StatusNotFound)
		return
	}

	if errors.Is(err, models.ErrProfileDeactivated) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusForbidden)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: view})
}

func (app *app) reportIncident(rw http.ResponseWriter, r *http.Request) {
	payload := struct {
		PublicID string `json:"public_id"`
		Location string `json:"location"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(payload.PublicID) == "" {
		writeResponse(rw, ResponsePayload{Errors: []string{"public_id is required"}}, http.StatusBadRequest)
		return
	}

	incident, err := app.ds.RecordIncident(payload.PublicID, payload.Location)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid QR code"}}, http.StatusNotFound)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	// Notification delivery happens off the request path; failures to
	// enqueue never fail the report itself
	err = app.workerPool.Perform(work.JobParams{
		Name:    fmt.Sprintf("notify-incident-%v", incident.UUID),
		Handler: notifyContactsHandlerName,
		Unique:  true,
		Args: map[string]interface{}{
			"incident_uuid": incident.UUID,
			"public_id":     incident.PublicID,
			"location":      incident.Location,
		},
	})
	if err != nil {
		logg.Errorf("unable to enqueue notification for incident %v: %v", incident.UUID, err)
	}

	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: map[string]string{"incident_id": incident.UUID}})
}
