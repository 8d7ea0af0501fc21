package models

import (
	"fmt"

	"github.com/carsafe/carsafe/server/auth"
)

// Password is stored hashed & never selected on regular lookups.
var allFieldsExceptPassword = []string{"id", "email", "created_at", "updated_at"}

type User struct {
	BaseModel
	Email    string   `json:"email" validate:"required,email" gorm:"not null;unique"`
	Password string   `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	Profile  *Profile `json:"profile,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ds *Datastore) CreateUser(user *User) error {
	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	return ds.db.Create(user).Error
}

func (ds *Datastore) FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := ds.db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (ds *Datastore) FindUserPassword(email string) (string, error) {
	user := &User{}
	err := ds.db.Select("Password").First(user, "email = ?", email).Error
	if err != nil {
		return "", err
	}

	return user.Password, nil
}
