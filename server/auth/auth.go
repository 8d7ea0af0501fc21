package auth

import (
	"fmt"
	"time"

	"github.com/carsafe/carsafe/server/auth/key"
	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

// SessionDuration is how long an issued session token stays valid.
const SessionDuration = 7 * 24 * time.Hour

type CarsafeTokenClaims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

// NewSessionClaims returns the claims for a fresh owner session.
func NewSessionClaims(userID, email string) CarsafeTokenClaims {
	return CarsafeTokenClaims{
		Email: email,
		StandardClaims: jwt.StandardClaims{
			Subject:   userID,
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(SessionDuration).Unix(),
		},
	}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func EncodeJWT(claims CarsafeTokenClaims, keyPair *key.KeyPair) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod("RS256"), claims)

	tokenString, err := token.SignedString(keyPair.PrivateKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func DecodeJWT(tokenString string, keyPair *key.KeyPair) (*CarsafeTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CarsafeTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// validate the alg is what you expect:
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return keyPair.PublicKey, nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid jwt: %v", err)
	}

	tokenClaims, ok := token.Claims.(*CarsafeTokenClaims)
	if !ok {
		return nil, fmt.Errorf("unable to assert token.Claims to CarsafeTokenClaims")
	}

	return tokenClaims, nil
}
