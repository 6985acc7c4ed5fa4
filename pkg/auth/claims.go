package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/freshbulk/freshbulk-backend/pkg/enums"
)

// AccessTokenPayload is what a caller supplies when minting a token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims is the body of every access token. sub always equals
// user_id.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks during parsing.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return fmt.Errorf("token missing user_id")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid role %q in token", c.Role)
	}
	if c.Subject != c.UserID.String() {
		return fmt.Errorf("token subject does not match user_id")
	}
	return nil
}
