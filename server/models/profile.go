package models

import (
	"errors"
	"fmt"

	"github.com/carsafe/carsafe/server/contacts"
	"github.com/carsafe/carsafe/utils"
	"gorm.io/gorm"
)

// ErrProfileDeactivated means the profile exists but its owner has switched
// public lookups off. Kept distinct from gorm.ErrRecordNotFound so callers
// can tell "owner turned this off" apart from "never existed".
var ErrProfileDeactivated = errors.New("this QR code has been deactivated by the owner")

type Profile struct {
	BaseModel
	PublicID    string `json:"public_id" gorm:"not null;unique"`
	UserID      uint   `json:"user_id" gorm:"not null;unique"`
	DisplayName string `json:"display_name"`
	Contacts    string `json:"contacts"`
	Active      bool   `json:"active" gorm:"default:true"`
}

// PublicProfileView is everything an anonymous scanner is allowed to see.
// It is a hand-maintained projection: no owner id, no credentials, no row
// ids - only what the emergency page needs.
type PublicProfileView struct {
	DisplayName string             `json:"display_name"`
	Contacts    []contacts.Contact `json:"contacts"`
}

// NormalizedContacts returns the stored contacts in canonical form, padded
// for the owner's editing surface.
func (profile *Profile) NormalizedContacts() []contacts.Contact {
	return contacts.Normalize([]byte(profile.Contacts))
}

func (ds *Datastore) FindProfileBy(field string, value interface{}) (*Profile, error) {
	profile := Profile{}
	err := ds.db.First(&profile, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

// UpsertProfile creates the owner's profile on first save - minting its
// public id - or overwrites display name & contacts in place on later
// saves. The public id & active flag never change here. The whole
// read-then-write runs in one transaction, with the unique index on
// user_id as a backstop, so concurrent first saves can't mint two ids for
// one owner.
func (ds *Datastore) UpsertProfile(userID uint, displayName string, rawContacts []contacts.Contact) (*Profile, error) {
	validContacts, err := contacts.ValidateForSave(rawContacts)
	if err != nil {
		return nil, err
	}

	encodedContacts, err := contacts.Encode(validContacts)
	if err != nil {
		return nil, err
	}

	profile := Profile{}
	err = ds.db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&profile, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			publicID, err := utils.GenerateToken(utils.PublicIDLength)
			if err != nil {
				return err
			}

			profile = Profile{
				PublicID:    publicID,
				UserID:      userID,
				DisplayName: displayName,
				Contacts:    encodedContacts,
				Active:      true,
			}
			return tx.Create(&profile).Error
		}

		if err != nil {
			return err
		}

		return tx.Model(&profile).Updates(map[string]interface{}{
			"display_name": displayName,
			"contacts":     encodedContacts,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return ds.FindProfileBy("user_id", userID)
}

// SetProfileActive flips the public-resolution gate without touching
// contacts.
func (ds *Datastore) SetProfileActive(userID uint, active bool) (*Profile, error) {
	profile, err := ds.FindProfileBy("user_id", userID)
	if err != nil {
		return nil, err
	}

	err = ds.db.Model(profile).Update("active", active).Error
	if err != nil {
		return nil, err
	}

	return ds.FindProfileBy("user_id", userID)
}

// ResolvePublicProfile maps a public id to the sanitized emergency view.
// Unknown ids return gorm.ErrRecordNotFound; known-but-deactivated ids
// return ErrProfileDeactivated.
func (ds *Datastore) ResolvePublicProfile(publicID string) (*PublicProfileView, error) {
	profile, err := ds.FindProfileBy("public_id", publicID)
	if err != nil {
		return nil, err
	}

	if !profile.Active {
		return nil, ErrProfileDeactivated
	}

	return &PublicProfileView{
		DisplayName: profile.DisplayName,
		Contacts:    contacts.ForPublicDisplay([]byte(profile.Contacts)),
	}, nil
}
