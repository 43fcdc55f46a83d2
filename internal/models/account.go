package models

import (
	"time"

	"github.com/insights-engine/internal/types"
)

// Account identifies a connected third-party analytics account.
// The credential may be stored encrypted ("enc:" prefix) or raw; the
// engine only reads accounts, apart from decrypting the credential.
type Account struct {
	ID         string            `json:"id" db:"id"`
	Provider   types.TokenFamily `json:"provider" db:"provider"`
	BusinessID string            `json:"businessId" db:"business_id"`
	Credential string            `json:"-" db:"credential"`
	Timezone   string            `json:"timezone" db:"timezone"`
	CreatedAt  time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time         `json:"updatedAt" db:"updated_at"`
}
