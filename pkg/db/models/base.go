package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller left it empty. Postgres also
// defaults ids, but sqlite (dev flag and tests) has no uuid generator.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
