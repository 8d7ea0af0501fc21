package models

import (
	"testing"

	"github.com/carsafe/carsafe/server/contacts"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestRecordIncidentAgainstUnknownIDFails(t *testing.T) {
	ds, err := InitializeTestDb()
	assert.Nil(t, err)

	_, err = ds.RecordIncident("no-such-public-id", "Main St")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecordIncidentAcceptsDeactivatedProfile(t *testing.T) {
	ds, err := InitializeTestDb()
	assert.Nil(t, err)

	user := createTestUser(t, ds, "jane@example.com")
	profile, err := ds.UpsertProfile(user.ID, "Jane", []contacts.Contact{{Number: "+1555", Label: "Mom"}})
	assert.Nil(t, err)

	_, err = ds.SetProfileActive(user.ID, false)
	assert.Nil(t, err)

	// A report against a deactivated-but-existing profile is still
	// meaningful & must be accepted
	incident, err := ds.RecordIncident(profile.PublicID, "Main St & 5th")
	assert.Nil(t, err)
	assert.NotEmpty(t, incident.UUID)
	assert.Equal(t, profile.PublicID, incident.PublicID)
	assert.Equal(t, "Main St & 5th", incident.Location)
	assert.False(t, incident.CreatedAt.IsZero())
}

func TestRecordIncidentWithoutLocation(t *testing.T) {
	ds, err := InitializeTestDb()
	assert.Nil(t, err)

	user := createTestUser(t, ds, "jane@example.com")
	profile, err := ds.UpsertProfile(user.ID, "Jane", []contacts.Contact{{Number: "+1555"}})
	assert.Nil(t, err)

	incident, err := ds.RecordIncident(profile.PublicID, "")
	assert.Nil(t, err)
	assert.Empty(t, incident.Location)
}

func TestIncidentsForUserListsOnlyOwnIncidents(t *testing.T) {
	ds, err := InitializeTestDb()
	assert.Nil(t, err)

	jane := createTestUser(t, ds, "jane@example.com")
	janeProfile, err := ds.UpsertProfile(jane.ID, "Jane", []contacts.Contact{{Number: "+1555"}})
	assert.Nil(t, err)

	tony := createTestUser(t, ds, "tony@example.com")
	tonyProfile, err := ds.UpsertProfile(tony.ID, "Tony", []contacts.Contact{{Number: "+1666"}})
	assert.Nil(t, err)

	_, err = ds.RecordIncident(janeProfile.PublicID, "lot A")
	assert.Nil(t, err)
	_, err = ds.RecordIncident(tonyProfile.PublicID, "lot B")
	assert.Nil(t, err)

	incidents, err := ds.IncidentsForUser(jane.ID)
	assert.Nil(t, err)
	assert.Len(t, incidents, 1)
	assert.Equal(t, "lot A", incidents[0].Location)
}

func TestIncidentsForUserWithoutProfileIsEmpty(t *testing.T) {
	ds, err := InitializeTestDb()
	assert.Nil(t, err)

	user := createTestUser(t, ds, "jane@example.com")

	incidents, err := ds.IncidentsForUser(user.ID)
	assert.Nil(t, err)
	assert.Empty(t, incidents)
}
