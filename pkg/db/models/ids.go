package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller left it empty. Postgres would
// default it, but the value must be known before the row is written so that
// outbox events and child rows can reference it.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
