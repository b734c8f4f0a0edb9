package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valterpcjria-cloud/doi-smart/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("schema bootstrap failed: %w", err)
	}
	return nil
}

// Certificates returns the certificate store sharing this pool.
func (s *Store) Certificates() *CertificateStore {
	return &CertificateStore{Db: s.Db}
}

const recordColumns = `code, to_char(operation_date, 'YYYY-MM-DD'), competence, property_address,
	registry_number, value, status, COALESCE(receipt_number, ''), COALESCE(error_message, ''), updated_at,
	operation_type, COALESCE(operation_nature, ''), COALESCE(document_type, ''), payment_method,
	COALESCE(book, ''), COALESCE(page, ''), COALESCE(area, ''), COALESCE(nirf, ''), COALESCE(iptu, ''),
	itbi_value, itcd_value, COALESCE(office_name, ''), COALESCE(office_official, ''), COALESCE(office_code, '')`

func scanRecord(row pgx.Row) (domain.Record, error) {
	var r domain.Record
	err := row.Scan(
		&r.ID, &r.Date, &r.Competence, &r.PropertyAddress,
		&r.RegistryNumber, &r.Value, &r.Status, &r.ReceiptNumber, &r.ErrorMessage, &r.LastUpdate,
		&r.OperationType, &r.OperationNature, &r.DocumentType, &r.PaymentMethod,
		&r.Book, &r.Page, &r.Area, &r.NIRF, &r.IPTU,
		&r.ITBIValue, &r.ITCDValue, &r.RegistryOffice.Name, &r.RegistryOffice.Official, &r.RegistryOffice.Code,
	)
	return r, err
}

// List returns all records, newest first, with their parties.
func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.Db.Query(ctx, "SELECT "+recordColumns+" FROM records ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list records failed: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	index := make(map[string]int)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record failed: %w", err)
		}
		index[r.ID] = len(records)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []domain.Record{}, nil
	}

	codes := make([]string, 0, len(records))
	for _, r := range records {
		codes = append(codes, r.ID)
	}
	parties, err := s.loadParties(ctx, codes)
	if err != nil {
		return nil, err
	}
	for code, ps := range parties {
		records[index[code]].Parties = ps
	}
	return records, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Record, error) {
	r, err := scanRecord(s.Db.QueryRow(ctx, "SELECT "+recordColumns+" FROM records WHERE code = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record failed: %w", err)
	}
	parties, err := s.loadParties(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	r.Parties = parties[id]
	return &r, nil
}

func (s *Store) loadParties(ctx context.Context, codes []string) (map[string][]domain.Party, error) {
	rows, err := s.Db.Query(ctx, `
		SELECT r.code, p.name, p.tax_id, p.role, p.share, COALESCE(p.civil_status, '')
		FROM parties p JOIN records r ON r.id = p.record_id
		WHERE r.code = ANY($1)
		ORDER BY p.record_id, p.position`, codes)
	if err != nil {
		return nil, fmt.Errorf("load parties failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Party, len(codes))
	for rows.Next() {
		var code string
		var p domain.Party
		if err := rows.Scan(&code, &p.Name, &p.TaxID, &p.Role, &p.Share, &p.CivilStatus); err != nil {
			return nil, fmt.Errorf("scan party failed: %w", err)
		}
		out[code] = append(out[code], p)
	}
	return out, rows.Err()
}

// Create inserts the record and its parties in one transaction and returns the assigned code.
func (s *Store) Create(ctx context.Context, rec domain.Record) (string, error) {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize code assignment; codes are sequential per year.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext('records.code'))"); err != nil {
		return "", fmt.Errorf("code lock failed: %w", err)
	}
	var year, next int
	err = tx.QueryRow(ctx, `
		SELECT EXTRACT(YEAR FROM now())::int,
		       COALESCE(MAX(split_part(code, '-', 3)::int), 0) + 1
		FROM records WHERE code LIKE 'DOI-' || EXTRACT(YEAR FROM now())::int || '-%'`,
	).Scan(&year, &next)
	if err != nil {
		return "", fmt.Errorf("code allocation failed: %w", err)
	}
	code := RecordCode(year, next)

	status := domain.StatusReady
	if rec.Status == domain.StatusDraft {
		status = domain.StatusDraft
	}
	var recordID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO records (
			code, operation_date, competence, property_address, registry_number, nirf, iptu,
			value, itbi_value, itcd_value, area, operation_type, operation_nature, document_type,
			payment_method, book, page, office_name, office_official, office_code, status
		) VALUES ($1, COALESCE($2::date, CURRENT_DATE), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`,
		code, nullable(rec.Date), rec.Competence, rec.PropertyAddress, rec.RegistryNumber, nullable(rec.NIRF), nullable(rec.IPTU),
		rec.Value, rec.ITBIValue, rec.ITCDValue, nullable(rec.Area), rec.OperationType, nullable(rec.OperationNature),
		nullable(rec.DocumentType), paymentMethod(rec.PaymentMethod), nullable(rec.Book), nullable(rec.Page),
		nullable(rec.RegistryOffice.Name), nullable(rec.RegistryOffice.Official), nullable(rec.RegistryOffice.Code), status,
	).Scan(&recordID)
	if err != nil {
		return "", mapWriteError("record insert failed", err)
	}

	if err := insertParties(ctx, tx, recordID, rec.Parties); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("tx commit failed: %w", err)
	}
	return code, nil
}

// Update applies the non-nil fields of patch; a non-nil party list replaces the old one.
func (s *Store) Update(ctx context.Context, id string, patch domain.RecordPatch) error {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var office domain.RegistryOffice
	var officeSet bool
	if patch.RegistryOffice != nil {
		office, officeSet = *patch.RegistryOffice, true
	}

	var recordID int64
	err = tx.QueryRow(ctx, `
		UPDATE records SET
			operation_date   = COALESCE($2::date, operation_date),
			competence       = COALESCE($3::text, competence),
			property_address = COALESCE($4::text, property_address),
			registry_number  = COALESCE($5::text, registry_number),
			value            = COALESCE($6::numeric, value),
			operation_type   = COALESCE($7::text, operation_type),
			operation_nature = COALESCE($8::text, operation_nature),
			document_type    = COALESCE($9::text, document_type),
			payment_method   = COALESCE($10::text, payment_method),
			book             = COALESCE($11::text, book),
			page             = COALESCE($12::text, page),
			area             = COALESCE($13::text, area),
			nirf             = COALESCE($14::text, nirf),
			iptu             = COALESCE($15::text, iptu),
			itbi_value       = COALESCE($16::numeric, itbi_value),
			itcd_value       = COALESCE($17::numeric, itcd_value),
			office_name      = CASE WHEN $18::bool THEN $19::text ELSE office_name END,
			office_official  = CASE WHEN $18::bool THEN $20::text ELSE office_official END,
			office_code      = CASE WHEN $18::bool THEN $21::text ELSE office_code END,
			updated_at       = now()
		WHERE code = $1
		RETURNING id`,
		id, patch.Date, patch.Competence, patch.PropertyAddress, patch.RegistryNumber, patch.Value,
		patch.OperationType, patch.OperationNature, patch.DocumentType, patch.PaymentMethod,
		patch.Book, patch.Page, patch.Area, patch.NIRF, patch.IPTU, patch.ITBIValue, patch.ITCDValue,
		officeSet, nullable(office.Name), nullable(office.Official), nullable(office.Code),
	).Scan(&recordID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecordNotFound
		}
		return mapWriteError("record update failed", err)
	}

	if patch.Parties != nil {
		if _, err := tx.Exec(ctx, "DELETE FROM parties WHERE record_id = $1", recordID); err != nil {
			return fmt.Errorf("party reset failed: %w", err)
		}
		if err := insertParties(ctx, tx, recordID, *patch.Parties); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// Delete removes a record and its parties unless it was already transmitted.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.Db.Exec(ctx, "DELETE FROM records WHERE code = $1 AND status <> 'TRANSMITTED'", id)
	if err != nil {
		return fmt.Errorf("record delete failed: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status domain.Status
	err = s.Db.QueryRow(ctx, "SELECT status FROM records WHERE code = $1", id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("record lookup failed: %w", err)
	}
	return domain.ErrRecordTransmitted
}

// UpdateStatus keeps the stored receipt when receipt is empty.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.Status, receipt, errMsg string) error {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx, "SELECT COALESCE(receipt_number, '') FROM records WHERE code = $1 FOR UPDATE", id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecordNotFound
		}
		return fmt.Errorf("status lock failed: %w", err)
	}
	if receipt == "" {
		receipt = current
	}
	if err := domain.ValidateStatusChange(status, receipt, errMsg); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE records SET status = $2, receipt_number = $3, error_message = $4, updated_at = now()
		WHERE code = $1`,
		id, status, nullable(receipt), nullable(errMsg),
	)
	if err != nil {
		return mapWriteError("status update failed", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func insertParties(ctx context.Context, tx pgx.Tx, recordID int64, parties []domain.Party) error {
	if len(parties) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(parties))
	for i, p := range parties {
		rows = append(rows, []any{recordID, i, p.Name, p.TaxID, string(p.Role), p.Share, nullable(p.CivilStatus)})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"parties"},
		[]string{"record_id", "position", "name", "tax_id", "role", "share", "civil_status"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("party insert failed: %w", err)
	}
	return nil
}

// CertificateStore persists signing-certificate metadata in postgres.
type CertificateStore struct {
	Db *pgxpool.Pool
}

func (c *CertificateStore) List(ctx context.Context) ([]domain.Certificate, error) {
	rows, err := c.Db.Query(ctx, `
		SELECT id::text, owner, type, expiry_date, is_active
		FROM certificates ORDER BY is_active DESC, expiry_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("list certificates failed: %w", err)
	}
	defer rows.Close()

	certs := []domain.Certificate{}
	for rows.Next() {
		var cert domain.Certificate
		if err := rows.Scan(&cert.ID, &cert.Owner, &cert.Type, &cert.ExpiryDate, &cert.IsActive); err != nil {
			return nil, fmt.Errorf("scan certificate failed: %w", err)
		}
		cert.Status = domain.CertificateStatusAt(cert.ExpiryDate, time.Now())
		certs = append(certs, cert)
	}
	return certs, rows.Err()
}

// Create stores the certificate; the first one ever stored becomes active.
func (c *CertificateStore) Create(ctx context.Context, cert domain.Certificate) (string, error) {
	var id string
	err := c.Db.QueryRow(ctx, `
		INSERT INTO certificates (owner, type, expiry_date, is_active)
		VALUES ($1, $2, $3, NOT EXISTS (SELECT 1 FROM certificates))
		RETURNING id::text`,
		cert.Owner, string(cert.Type), cert.ExpiryDate,
	).Scan(&id)
	if err != nil {
		return "", mapWriteError("certificate insert failed", err)
	}
	return id, nil
}

func (c *CertificateStore) Delete(ctx context.Context, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.ErrCertificateNotFound
	}
	tag, err := c.Db.Exec(ctx, "DELETE FROM certificates WHERE id = $1", n)
	if err != nil {
		return fmt.Errorf("certificate delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCertificateNotFound
	}
	return nil
}

// SetActive makes id the only active certificate.
func (c *CertificateStore) SetActive(ctx context.Context, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.ErrCertificateNotFound
	}
	tx, err := c.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "UPDATE certificates SET is_active = false WHERE is_active"); err != nil {
		return fmt.Errorf("certificate deactivate failed: %w", err)
	}
	tag, err := tx.Exec(ctx, "UPDATE certificates SET is_active = true WHERE id = $1", n)
	if err != nil {
		return fmt.Errorf("certificate activate failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCertificateNotFound
	}
	return tx.Commit(ctx)
}

func (c *CertificateStore) Active(ctx context.Context) (*domain.Certificate, error) {
	var cert domain.Certificate
	err := c.Db.QueryRow(ctx, `
		SELECT id::text, owner, type, expiry_date, is_active
		FROM certificates WHERE is_active LIMIT 1`,
	).Scan(&cert.ID, &cert.Owner, &cert.Type, &cert.ExpiryDate, &cert.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoActiveCertificate
		}
		return nil, fmt.Errorf("active certificate lookup failed: %w", err)
	}
	cert.Status = domain.CertificateStatusAt(cert.ExpiryDate, time.Now())
	return &cert, nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func paymentMethod(s string) string {
	if s == "" {
		return "VISTA"
	}
	return s
}
