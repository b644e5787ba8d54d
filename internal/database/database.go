package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"limit-offer-api/internal/models"
)

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY on concurrent transactions.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS Account (
			account_id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_id TEXT NOT NULL,
			account_limit NUMERIC NOT NULL,
			per_transaction_limit NUMERIC NOT NULL,
			last_account_limit NUMERIC NOT NULL,
			last_per_transaction_limit NUMERIC NOT NULL,
			account_limit_update_time TEXT NOT NULL,
			per_transaction_limit_update_time TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS Offer (
			offer_id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL,
			limit_type TEXT NOT NULL,
			new_limit NUMERIC NOT NULL,
			offer_activation_time TEXT NOT NULL,
			offer_expiry_time TEXT NOT NULL,
			status TEXT NOT NULL,
			FOREIGN KEY (account_id) REFERENCES Account(account_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offer_account_id ON Offer(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_offer_status ON Offer(account_id, status)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// limitColumns returns the current/last/update-time column triple governed by
// the given limit type. This is the single place the two-way selector is
// mapped; any other value fails fast.
func limitColumns(lt models.LimitType) (current, last, updateTime string, err error) {
	switch lt {
	case models.LimitTypeAccount:
		return "account_limit", "last_account_limit", "account_limit_update_time", nil
	case models.LimitTypePerTransaction:
		return "per_transaction_limit", "last_per_transaction_limit", "per_transaction_limit_update_time", nil
	default:
		return "", "", "", &models.ErrInvalidLimitType{Value: string(lt)}
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx so the row helpers can run
// standalone or inside the redemption transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateAccount inserts an account and returns its generated identifier.
// The last_* columns start at zero and both update times start at creation
// time.
func (db *DB) CreateAccount(ctx context.Context, account models.Account) (int64, error) {
	now := time.Now().UTC()
	if account.AccountLimitUpdateTime.IsZero() {
		account.AccountLimitUpdateTime = now
	}
	if account.PerTransactionLimitUpdateTime.IsZero() {
		account.PerTransactionLimitUpdateTime = now
	}

	query := `INSERT INTO Account (
		customer_id, account_limit, per_transaction_limit,
		last_account_limit, last_per_transaction_limit,
		account_limit_update_time, per_transaction_limit_update_time
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := db.conn.ExecContext(ctx, query,
		account.CustomerID,
		account.AccountLimit,
		account.PerTransactionLimit,
		account.LastAccountLimit,
		account.LastPerTransactionLimit,
		account.AccountLimitUpdateTime.Format(time.RFC3339),
		account.PerTransactionLimitUpdateTime.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read account id: %w", err)
	}

	return id, nil
}

// GetAccountByID returns the full account record.
func (db *DB) GetAccountByID(ctx context.Context, accountID int64) (*models.Account, error) {
	return getAccount(ctx, db.conn, accountID)
}

func getAccount(ctx context.Context, q querier, accountID int64) (*models.Account, error) {
	query := `SELECT account_id, customer_id, account_limit, per_transaction_limit,
		last_account_limit, last_per_transaction_limit,
		account_limit_update_time, per_transaction_limit_update_time
		FROM Account WHERE account_id = ?`

	var account models.Account
	var accountUpdate, perTxnUpdate string

	err := q.QueryRowContext(ctx, query, accountID).Scan(
		&account.AccountID,
		&account.CustomerID,
		&account.AccountLimit,
		&account.PerTransactionLimit,
		&account.LastAccountLimit,
		&account.LastPerTransactionLimit,
		&accountUpdate,
		&perTxnUpdate,
	)
	if err == sql.ErrNoRows {
		return nil, &models.ErrNotFound{Resource: "account", ID: accountID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	if account.AccountLimitUpdateTime, err = time.Parse(time.RFC3339, accountUpdate); err != nil {
		return nil, fmt.Errorf("failed to parse account_limit_update_time: %w", err)
	}
	if account.PerTransactionLimitUpdateTime, err = time.Parse(time.RFC3339, perTxnUpdate); err != nil {
		return nil, fmt.Errorf("failed to parse per_transaction_limit_update_time: %w", err)
	}

	return &account, nil
}

// GetAccountLimit returns the current value of the limit column selected by
// the limit type.
func (db *DB) GetAccountLimit(ctx context.Context, accountID int64, limitType models.LimitType) (float64, error) {
	return getAccountLimit(ctx, db.conn, accountID, limitType)
}

func getAccountLimit(ctx context.Context, q querier, accountID int64, limitType models.LimitType) (float64, error) {
	current, _, _, err := limitColumns(limitType)
	if err != nil {
		return 0, err
	}

	var limit float64
	err = q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM Account WHERE account_id = ?", current),
		accountID,
	).Scan(&limit)
	if err == sql.ErrNoRows {
		return 0, &models.ErrNotFound{Resource: "account", ID: accountID}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query account limit: %w", err)
	}

	return limit, nil
}

// UpdateAccountLimitPair sets the current limit column to newValue, moves the
// previous current value into the matching last_* column, and stamps the
// update time, all in one statement so the pair never drifts apart. Callers
// must have read the current value in the same logical operation.
func (db *DB) UpdateAccountLimitPair(ctx context.Context, accountID int64, limitType models.LimitType, newValue float64, now time.Time) error {
	return updateAccountLimitPair(ctx, db.conn, accountID, limitType, newValue, now)
}

func updateAccountLimitPair(ctx context.Context, q querier, accountID int64, limitType models.LimitType, newValue float64, now time.Time) error {
	current, last, updateTime, err := limitColumns(limitType)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"UPDATE Account SET %s = %s, %s = ?, %s = ? WHERE account_id = ?",
		last, current, current, updateTime,
	)

	res, err := q.ExecContext(ctx, query, newValue, now.UTC().Format(time.RFC3339), accountID)
	if err != nil {
		return fmt.Errorf("failed to update account limit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return &models.ErrNotFound{Resource: "account", ID: accountID}
	}

	return nil
}

// CreateOffer inserts an offer and returns its generated identifier.
func (db *DB) CreateOffer(ctx context.Context, offer models.Offer) (int64, error) {
	query := `INSERT INTO Offer (
		account_id, limit_type, new_limit,
		offer_activation_time, offer_expiry_time, status
	) VALUES (?, ?, ?, ?, ?, ?)`

	res, err := db.conn.ExecContext(ctx, query,
		offer.AccountID,
		string(offer.LimitType),
		offer.NewLimit,
		offer.ActivationTime.UTC().Format(time.RFC3339),
		offer.ExpiryTime.UTC().Format(time.RFC3339),
		string(offer.Status),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert offer: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read offer id: %w", err)
	}

	return id, nil
}

// GetOfferByID returns the full offer record.
func (db *DB) GetOfferByID(ctx context.Context, offerID int64) (*models.Offer, error) {
	return getOffer(ctx, db.conn, offerID)
}

func getOffer(ctx context.Context, q querier, offerID int64) (*models.Offer, error) {
	query := `SELECT offer_id, account_id, limit_type, new_limit,
		offer_activation_time, offer_expiry_time, status
		FROM Offer WHERE offer_id = ?`

	offer, err := scanOffer(q.QueryRowContext(ctx, query, offerID))
	if err == sql.ErrNoRows {
		return nil, &models.ErrNotFound{Resource: "offer", ID: offerID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query offer: %w", err)
	}

	return offer, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (*models.Offer, error) {
	var offer models.Offer
	var activation, expiry string

	err := row.Scan(
		&offer.OfferID,
		&offer.AccountID,
		&offer.LimitType,
		&offer.NewLimit,
		&activation,
		&expiry,
		&offer.Status,
	)
	if err != nil {
		return nil, err
	}

	if offer.ActivationTime, err = time.Parse(time.RFC3339, activation); err != nil {
		return nil, fmt.Errorf("failed to parse offer_activation_time: %w", err)
	}
	if offer.ExpiryTime, err = time.Parse(time.RFC3339, expiry); err != nil {
		return nil, fmt.Errorf("failed to parse offer_expiry_time: %w", err)
	}

	return &offer, nil
}

// ListActiveOffers returns the PENDING offers for an account. When asOf is
// given, the result is further filtered to offers whose half-open
// [activation, expiry) window contains it.
func (db *DB) ListActiveOffers(ctx context.Context, accountID int64, asOf *time.Time) ([]models.Offer, error) {
	query := `SELECT offer_id, account_id, limit_type, new_limit,
		offer_activation_time, offer_expiry_time, status
		FROM Offer WHERE account_id = ? AND status = ?`
	args := []any{accountID, string(models.OfferStatusPending)}

	if asOf != nil {
		query += " AND offer_activation_time <= ? AND offer_expiry_time > ?"
		ts := asOf.UTC().Format(time.RFC3339)
		args = append(args, ts, ts)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query active offers: %w", err)
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, *offer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}

	return offers, nil
}

// UpdateOfferStatus sets the offer status unconditionally. It does not
// enforce the pending-only precondition; RedeemOffer does.
func (db *DB) UpdateOfferStatus(ctx context.Context, offerID int64, status models.OfferStatus) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE Offer SET status = ? WHERE offer_id = ?",
		string(status), offerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update offer status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return &models.ErrNotFound{Resource: "offer", ID: offerID}
	}

	return nil
}

// RedeemOffer resolves a pending offer to the given terminal status. On
// ACCEPTED the owning account's limit pair for the offer's limit type is
// updated (current := offer's new limit, last := previous current, update
// time := now); on REJECTED the account is untouched.
//
// The whole sequence runs in one transaction, and the status write is
// conditional on the row still being PENDING, so two concurrent redemptions
// of the same offer cannot both apply: the loser fails with ErrAlreadyRedeemed
// and its account mutation rolls back.
func (db *DB) RedeemOffer(ctx context.Context, offerID int64, target models.OfferStatus) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	offer, err := getOffer(ctx, tx, offerID)
	if err != nil {
		return err
	}

	if offer.Status != models.OfferStatusPending {
		return &models.ErrAlreadyRedeemed{OfferID: offerID}
	}

	if target == models.OfferStatusAccepted {
		if err := updateAccountLimitPair(ctx, tx, offer.AccountID, offer.LimitType, offer.NewLimit, time.Now()); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE Offer SET status = ? WHERE offer_id = ? AND status = ?",
		string(target), offerID, string(models.OfferStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update offer status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return &models.ErrAlreadyRedeemed{OfferID: offerID}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit redemption: %w", err)
	}

	return nil
}

// DeleteAccount removes an account; the foreign key cascades to its offers.
func (db *DB) DeleteAccount(ctx context.Context, accountID int64) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM Account WHERE account_id = ?", accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return &models.ErrNotFound{Resource: "account", ID: accountID}
	}

	return nil
}
