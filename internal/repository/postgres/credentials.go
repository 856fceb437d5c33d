package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"exconnect/internal/adapters/exchanges"
	"exconnect/internal/metrics"
	"exconnect/pkg/crypto"
	"exconnect/pkg/errors"
)

var _ exchanges.CredentialSource = (*CredentialRepository)(nil)

// credentialRow mirrors the exchange_credentials table.
type credentialRow struct {
	Exchange          string    `db:"exchange"`
	APIKeyEncrypted   []byte    `db:"api_key_encrypted"`
	SecretEncrypted   []byte    `db:"secret_encrypted"`
	UIDEncrypted      []byte    `db:"uid_encrypted"`
	PasswordEncrypted []byte    `db:"password_encrypted"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// CredentialRepository stores exchange API credentials encrypted at rest.
type CredentialRepository struct {
	db        sqlx.ExtContext
	encryptor *crypto.Encryptor
}

// NewCredentialRepository creates a repository over db, which may be a
// *sqlx.DB or a *sqlx.Tx.
func NewCredentialRepository(db sqlx.ExtContext, encryptor *crypto.Encryptor) *CredentialRepository {
	return &CredentialRepository{db: db, encryptor: encryptor}
}

// Save inserts or replaces the credentials of exchange.
func (r *CredentialRepository) Save(ctx context.Context, exchange string, creds exchanges.Credentials) error {
	if exchange == "" {
		return errors.NewValidationError("exchange", "must not be empty", exchange)
	}
	if creds.APIKey == "" || creds.Secret == "" {
		return errors.NewValidationError("credentials", "api key and secret are required", exchange)
	}

	row := credentialRow{Exchange: exchange}
	var err error
	if row.APIKeyEncrypted, err = r.encryptor.Encrypt(creds.APIKey); err != nil {
		return errors.Wrap(err, "encrypt api key")
	}
	if row.SecretEncrypted, err = r.encryptor.Encrypt(creds.Secret); err != nil {
		return errors.Wrap(err, "encrypt secret")
	}
	if row.UIDEncrypted, err = r.encryptor.EncryptOptional(creds.UID); err != nil {
		return errors.Wrap(err, "encrypt uid")
	}
	if row.PasswordEncrypted, err = r.encryptor.EncryptOptional(creds.Password); err != nil {
		return errors.Wrap(err, "encrypt password")
	}

	query := `
		INSERT INTO exchange_credentials (
			exchange, api_key_encrypted, secret_encrypted, uid_encrypted, password_encrypted
		) VALUES (
			:exchange, :api_key_encrypted, :secret_encrypted, :uid_encrypted, :password_encrypted
		)
		ON CONFLICT (exchange) DO UPDATE SET
			api_key_encrypted  = EXCLUDED.api_key_encrypted,
			secret_encrypted   = EXCLUDED.secret_encrypted,
			uid_encrypted      = EXCLUDED.uid_encrypted,
			password_encrypted = EXCLUDED.password_encrypted,
			updated_at         = now()`

	start := time.Now()
	_, err = sqlx.NamedExecContext(ctx, r.db, query, row)
	metrics.RecordDBQuery("postgres", "save_credentials", time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, "failed to save credentials")
	}
	return nil
}

// Credentials implements exchanges.CredentialSource.
func (r *CredentialRepository) Credentials(ctx context.Context, exchange string) (exchanges.Credentials, bool, error) {
	var row credentialRow
	query := `
		SELECT exchange, api_key_encrypted, secret_encrypted, uid_encrypted,
			password_encrypted, created_at, updated_at
		FROM exchange_credentials
		WHERE exchange = $1`

	start := time.Now()
	err := sqlx.GetContext(ctx, r.db, &row, query, exchange)
	missing := errors.Is(err, sql.ErrNoRows)
	if missing {
		err = nil
	}
	metrics.RecordDBQuery("postgres", "get_credentials", time.Since(start), err)
	if missing {
		return exchanges.Credentials{}, false, nil
	}
	if err != nil {
		return exchanges.Credentials{}, false, errors.Wrap(err, "failed to get credentials")
	}

	creds, err := r.decrypt(row)
	if err != nil {
		return exchanges.Credentials{}, false, errors.NewDomainError("vault", "decrypt credentials for "+exchange, err)
	}
	return creds, true, nil
}

// Delete removes the credentials of exchange. Missing rows are not an error.
func (r *CredentialRepository) Delete(ctx context.Context, exchange string) error {
	start := time.Now()
	_, err := r.db.ExecContext(ctx, `DELETE FROM exchange_credentials WHERE exchange = $1`, exchange)
	metrics.RecordDBQuery("postgres", "delete_credentials", time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, "failed to delete credentials")
	}
	return nil
}

// List returns the exchanges that have stored credentials, sorted.
func (r *CredentialRepository) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, r.db, &ids, `SELECT exchange FROM exchange_credentials ORDER BY exchange`); err != nil {
		return nil, errors.Wrap(err, "failed to list credentials")
	}
	return ids, nil
}

func (r *CredentialRepository) decrypt(row credentialRow) (exchanges.Credentials, error) {
	var (
		creds exchanges.Credentials
		err   error
	)
	if creds.APIKey, err = r.encryptor.Decrypt(row.APIKeyEncrypted); err != nil {
		return creds, err
	}
	if creds.Secret, err = r.encryptor.Decrypt(row.SecretEncrypted); err != nil {
		return creds, err
	}
	if creds.UID, err = r.encryptor.DecryptOptional(row.UIDEncrypted); err != nil {
		return creds, err
	}
	if creds.Password, err = r.encryptor.DecryptOptional(row.PasswordEncrypted); err != nil {
		return creds, err
	}
	return creds, nil
}
