package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// JwtCustomClaim identifies the operator and the client whose sites they may edit.
type JwtCustomClaim struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	ClientId string `json:"client_id"`
	Role     string `json:"role"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("FieldOps-Secret")
	}
	return []byte(secret)
}

// TokenLifespan is TOKEN_HOUR_LIFESPAN hours, 12 by default.
func TokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 12
	}
	return time.Hour * time.Duration(hours)
}

func JwtGenerate(claim JwtCustomClaim) (string, error) {
	now := time.Now()
	claim.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(TokenLifespan()).Unix(),
		IssuedAt:  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &claim)

	token, err := t.SignedString(getJwtSecret())
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}
