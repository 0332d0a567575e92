package accounts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/dbx"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

const (
	accountColumns = `id, email, full_name, password_hash, created_at, status, is_superuser, is_staff`

	// activeOnly is appended to every read and write except the login lookup.
	activeOnly = `status = TRUE`
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.FullName, &a.PasswordHash, &a.CreatedAt, &a.Status, &a.IsSuperuser, &a.IsStaff)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// classify maps driver errors onto the registry's sentinels.
func classify(err error, operation string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code("DUPLICATE_EMAIL").With("operation", operation).Wrap(common.ErrDuplicateEmail)
	}

	return oops.Code("DB_ERROR").With("operation", operation).Wrapf(err, "db error")
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (id, email, full_name, password_hash, status, is_superuser, is_staff)
		 VALUES ($1, $2, $3, $4, TRUE, $5, $6)
		 RETURNING ` + accountColumns

	row := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), models.NormalizeEmail(account.Email), account.FullName, account.PasswordHash,
		account.IsSuperuser, account.IsStaff)

	created, err := scanAccount(row)
	if err != nil {
		return nil, classify(err, "create account")
	}

	return created, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 AND ` + activeOnly

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err, "find account by id")
	}
	return a, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 AND ` + activeOnly

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, classify(err, "find account by email")
	}
	return a, nil
}

func (r *PostgresRepository) FindByEmailAnyStatus(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, classify(err, "find account by email")
	}
	return a, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + activeOnly + ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, "list accounts")
	}
	defer rows.Close()

	result := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, classify(err, "list accounts")
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(err, "list accounts")
	}

	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, upd models.AccountUpdate) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	var email sql.NullString
	if upd.Email != nil {
		email = sql.NullString{String: models.NormalizeEmail(*upd.Email), Valid: true}
	}

	query :=
		`UPDATE accounts SET
		   email = COALESCE($2, email),
		   full_name = COALESCE($3, full_name),
		   password_hash = COALESCE($4, password_hash)
		 WHERE id = $1 AND ` + activeOnly + `
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id, email, nullable(upd.FullName), nullable(upd.PasswordHash)))
	if err != nil {
		return nil, classify(err, "update account")
	}
	return a, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	query :=
		`UPDATE accounts SET status = FALSE
		 WHERE id = $1 AND ` + activeOnly + `
		 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err, "deactivate account")
	}
	return a, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
