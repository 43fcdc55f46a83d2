package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

// AccountRepository handles connected-account persistence. Accounts are
// owned by the calling system; the engine only creates them through the
// provisioning endpoint and otherwise reads them.
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account, assigning an id when none is set
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := `
		INSERT INTO accounts (id, provider, business_id, credential, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		account.ID,
		account.Provider,
		account.BusinessID,
		account.Credential,
		account.Timezone,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Get retrieves an account by id
func (r *AccountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, provider, business_id, credential, timezone, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account models.Account
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.Provider,
		&account.BusinessID,
		&account.Credential,
		&account.Timezone,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &types.ServiceError{
				Code:    "account_not_found",
				Message: fmt.Sprintf("account not found: %s", id),
			}
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// UpdateCredential replaces the stored credential for an account
func (r *AccountRepository) UpdateCredential(ctx context.Context, id, credential string) error {
	query := `
		UPDATE accounts
		SET credential = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, id, credential, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}
