package model

import "github.com/golang-jwt/jwt/v5"

// Claims are carried in session tokens. RegisteredClaims.ID is the token ID
// used for revocation on sign-out.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Admin    bool   `json:"admin"`
	Remember bool   `json:"remember"`
}
