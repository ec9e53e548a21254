package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/iurnickita/paymi/internal/model"
	"github.com/iurnickita/paymi/internal/store/config"
)

// Store keeps the two pieces of off-chain state: each Telegram user's
// saved address, and the payment-attempt saga rows.
type Store interface {
	UserAddressGet(ctx context.Context, telegramID int64) (model.Address, error)
	UserAddressSet(ctx context.Context, telegramID int64, addr model.Address) error
	BeginAttempt(ctx context.Context, invoiceID int64, payer model.Address) error
	AdvanceAttempt(ctx context.Context, invoiceID int64, payer model.Address, state string) error
	AttemptGet(ctx context.Context, invoiceID int64) (model.PaymentAttempt, error)
}

var (
	ErrNoRows          = errors.New("no rows")
	ErrAttemptFinished = errors.New("payment attempt already finished")
)

type store struct {
	database *sql.DB
}

func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}

	// Saved addresses, one per Telegram user
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS telegram_users (" +
			" telegram_id BIGINT PRIMARY KEY," +
			" recipient_address VARCHAR (34) NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	// Payment saga. One row per invoice; a fresh attempt after a failure
	// reuses the row, a paid invoice never leaves PAID.
	_, err = db.Exec(
		"CREATE TABLE IF NOT EXISTS payment_attempt (" +
			" invoice_id BIGINT PRIMARY KEY," +
			" payer VARCHAR (34) NOT NULL," +
			" state VARCHAR (20) NOT NULL," +
			" updated_at TIMESTAMP NOT NULL" +
			" );")
	if err != nil {
		return nil, err
	}

	return &store{database: db}, nil
}

func (store *store) UserAddressGet(ctx context.Context, telegramID int64) (model.Address, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT recipient_address FROM telegram_users"+
			" WHERE telegram_id = $1",
		telegramID)
	var addr string
	err := row.Scan(&addr)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNoRows
		}
		return "", err
	}
	return model.Address(addr), nil
}

func (store *store) UserAddressSet(ctx context.Context, telegramID int64, addr model.Address) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO telegram_users (telegram_id, recipient_address)"+
			" VALUES ($1, $2)"+
			" ON CONFLICT (telegram_id)"+
			" DO UPDATE SET recipient_address = EXCLUDED.recipient_address",
		telegramID,
		string(addr))
	return err
}

func (store *store) BeginAttempt(ctx context.Context, invoiceID int64, payer model.Address) error {
	// a PAID row is terminal and never reopened
	result, err := store.database.ExecContext(ctx,
		"INSERT INTO payment_attempt (invoice_id, payer, state, updated_at)"+
			" VALUES ($1, $2, $3, $4)"+
			" ON CONFLICT (invoice_id)"+
			" DO UPDATE SET payer = EXCLUDED.payer, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at"+
			" WHERE payment_attempt.state <> $5",
		invoiceID,
		string(payer),
		model.PaymentStatePendingApproval,
		time.Now().UTC(),
		model.PaymentStatePaid)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAttemptFinished
	}
	return nil
}

func (store *store) AdvanceAttempt(ctx context.Context, invoiceID int64, payer model.Address, state string) error {
	result, err := store.database.ExecContext(ctx,
		"UPDATE payment_attempt"+
			" SET state = $1, updated_at = $2"+
			" WHERE invoice_id = $3"+
			"   AND payer = $4",
		state,
		time.Now().UTC(),
		invoiceID,
		string(payer))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *store) AttemptGet(ctx context.Context, invoiceID int64) (model.PaymentAttempt, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT invoice_id, payer, state, updated_at FROM payment_attempt"+
			" WHERE invoice_id = $1",
		invoiceID)
	var attempt model.PaymentAttempt
	var payer string
	err := row.Scan(&attempt.InvoiceID, &payer, &attempt.State, &attempt.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.PaymentAttempt{}, ErrNoRows
		}
		return model.PaymentAttempt{}, err
	}
	attempt.Payer = model.Address(payer)
	return attempt, nil
}
