package models

import "github.com/google/uuid"

// ensureID assigns a random identifier before insert so rows never depend on
// a database-side default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
