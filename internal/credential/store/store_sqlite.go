package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"edureg/internal/credential/models"
	"edureg/internal/platform/sqlite"
	id "edureg/pkg/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the registry schema to db.
func Migrate(db *sqlite.DB) error {
	return sqlite.RunMigrations(db.Writer, migrationsFS, "migrations")
}

// Compile-time interface satisfaction checks.
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*InMemoryStore)(nil)
)

// SQLiteStore persists the registry in SQLite. Write transactions run on the
// single writer connection, so they are serialized by the connection pool.
type SQLiteStore struct {
	db      *sqlite.DB
	timeout time.Duration
}

// NewSQLite constructs a SQLite-backed registry store. The schema must already be migrated.
func NewSQLite(db *sqlite.DB, opts ...Option) *SQLiteStore {
	return &SQLiteStore{db: db, timeout: applyOptions(opts).timeout}
}

func (s *SQLiteStore) Initialize(ctx context.Context, owner id.Identity, at time.Time) error {
	return s.run(ctx, s.db.Writer, true, func(tx *sqliteTx) error {
		reg, err := tx.Registry(ctx)
		switch {
		case errors.Is(err, ErrNotInitialized):
		case err != nil:
			return err
		case reg.Owner != owner:
			return models.ErrOwnerMismatch
		default:
			return nil
		}

		if _, err := tx.tx.ExecContext(ctx,
			`INSERT INTO registry_meta (id, owner, credential_count) VALUES (1, ?, 0)`,
			owner.String(),
		); err != nil {
			return fmt.Errorf("insert registry owner: %w", err)
		}
		return tx.AddInstitution(ctx, owner, at)
	})
}

func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, s.db.Writer, true, func(tx *sqliteTx) error { return fn(tx) })
}

func (s *SQLiteStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, s.db.Reader, false, func(tx *sqliteTx) error { return fn(tx) })
}

func (s *SQLiteStore) run(ctx context.Context, db *sql.DB, writable bool, fn func(tx *sqliteTx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return abortedErr(err)
	}
	ctx, cancel := withTxTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return abortedErr(ctxErr)
		}
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&sqliteTx{tx: tx, writable: writable}); err != nil {
		return err
	}
	if !writable {
		return tx.Rollback()
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx       *sql.Tx
	writable bool
}

func (t *sqliteTx) Registry(ctx context.Context) (models.Registry, error) {
	const query = `SELECT owner, credential_count FROM registry_meta WHERE id = 1`
	var owner string
	var count int64
	err := t.tx.QueryRowContext(ctx, query).Scan(&owner, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Registry{}, ErrNotInitialized
	}
	if err != nil {
		return models.Registry{}, fmt.Errorf("read registry: %w", err)
	}
	return models.Registry{Owner: id.Identity(owner), CredentialCount: uint64(count)}, nil
}

func (t *sqliteTx) FindCredential(ctx context.Context, credentialID id.CredentialID) (models.Credential, error) {
	const query = `
		SELECT id, student_name, course_name, institution_name, credential_hash,
			issuer, issued_at, is_valid, revoked_at
		FROM credentials
		WHERE id = ?
	`
	// IDs beyond int64 can never have been assigned.
	if uint64(credentialID) > uint64(1<<63-1) {
		return models.Credential{}, ErrNotFound
	}
	record, err := scanCredential(t.tx.QueryRowContext(ctx, query, int64(credentialID)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credential{}, ErrNotFound
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("find credential by id: %w", err)
	}
	return record, nil
}

func (t *sqliteTx) InsertCredential(ctx context.Context, credential models.Credential) (id.CredentialID, error) {
	if !t.writable {
		return 0, ErrReadOnly
	}
	reg, err := t.Registry(ctx)
	if err != nil {
		return 0, err
	}
	credential.ID = reg.NextID()

	const insert = `
		INSERT INTO credentials (id, student_name, course_name, institution_name, credential_hash,
			issuer, issued_at, is_valid, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = t.tx.ExecContext(ctx, insert,
		int64(credential.ID),
		credential.StudentName,
		credential.CourseName,
		credential.InstitutionName,
		credential.CredentialHash,
		credential.Issuer.String(),
		credential.IssueDate.UnixNano(),
		credential.IsValid,
		nullableTime(credential.RevokedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert credential: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx,
		`UPDATE registry_meta SET credential_count = ? WHERE id = 1`,
		int64(credential.ID),
	); err != nil {
		return 0, fmt.Errorf("advance credential count: %w", err)
	}
	return credential.ID, nil
}

func (t *sqliteTx) UpdateCredential(ctx context.Context, credential models.Credential) error {
	if !t.writable {
		return ErrReadOnly
	}
	const update = `UPDATE credentials SET is_valid = ?, revoked_at = ? WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, update,
		credential.IsValid,
		nullableTime(credential.RevokedAt),
		int64(credential.ID),
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) IsAuthorized(ctx context.Context, identity id.Identity) (bool, error) {
	const query = `SELECT 1 FROM authorized_institutions WHERE identity = ?`
	var one int
	err := t.tx.QueryRowContext(ctx, query, identity.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check institution: %w", err)
	}
	return true, nil
}

func (t *sqliteTx) AddInstitution(ctx context.Context, identity id.Identity, at time.Time) error {
	if !t.writable {
		return ErrReadOnly
	}
	const insert = `INSERT OR REPLACE INTO authorized_institutions (identity, authorized_at) VALUES (?, ?)`
	if _, err := t.tx.ExecContext(ctx, insert, identity.String(), at.UnixNano()); err != nil {
		return fmt.Errorf("add institution: %w", err)
	}
	return nil
}

func (t *sqliteTx) RemoveInstitution(ctx context.Context, identity id.Identity) error {
	if !t.writable {
		return ErrReadOnly
	}
	if _, err := t.tx.ExecContext(ctx,
		`DELETE FROM authorized_institutions WHERE identity = ?`,
		identity.String(),
	); err != nil {
		return fmt.Errorf("remove institution: %w", err)
	}
	return nil
}

func scanCredential(row *sql.Row) (models.Credential, error) {
	var (
		c         models.Credential
		credID    int64
		issuer    string
		issuedAt  int64
		revokedAt sql.NullInt64
	)
	if err := row.Scan(
		&credID,
		&c.StudentName,
		&c.CourseName,
		&c.InstitutionName,
		&c.CredentialHash,
		&issuer,
		&issuedAt,
		&c.IsValid,
		&revokedAt,
	); err != nil {
		return models.Credential{}, err
	}
	c.ID = id.CredentialID(credID)
	c.Issuer = id.Identity(issuer)
	c.IssueDate = time.Unix(0, issuedAt).UTC()
	if revokedAt.Valid {
		c.RevokedAt = time.Unix(0, revokedAt.Int64).UTC()
	}
	return c, nil
}

func nullableTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
