package models

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Incident is an anonymous scanner's report against a public id. Records
// are append-only & reference the public id rather than the profile row, so
// they stay queryable after the owner deactivates the profile.
type Incident struct {
	BaseModel
	UUID     string `json:"uuid" gorm:"not null;unique"`
	PublicID string `json:"public_id" gorm:"not null;index"`
	Location string `json:"location"`
}

// RecordIncident appends an incident for the given public id. A deactivated
// profile still accepts reports - only a wholly unknown id is rejected,
// with gorm.ErrRecordNotFound.
func (ds *Datastore) RecordIncident(publicID string, location string) (*Incident, error) {
	_, err := ds.FindProfileBy("public_id", publicID)
	if err != nil {
		return nil, err
	}

	incident := Incident{
		UUID:     uuid.NewString(),
		PublicID: publicID,
		Location: location,
	}

	err = ds.db.Create(&incident).Error
	if err != nil {
		return nil, err
	}

	return &incident, nil
}

// IncidentsForPublicID lists reports against a public id, newest first.
func (ds *Datastore) IncidentsForPublicID(publicID string) ([]Incident, error) {
	incidents := []Incident{}
	err := ds.db.Where("public_id = ?", publicID).Order("created_at DESC").Find(&incidents).Error
	if err != nil {
		return nil, err
	}

	return incidents, nil
}

// IncidentsForUser lists reports against the user's own QR id. A user with
// no profile yet simply has no incidents.
func (ds *Datastore) IncidentsForUser(userID uint) ([]Incident, error) {
	profile, err := ds.FindProfileBy("user_id", userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []Incident{}, nil
	}

	if err != nil {
		return nil, err
	}

	return ds.IncidentsForPublicID(profile.PublicID)
}
