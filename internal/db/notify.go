package db

import (
	"context"
	"database/sql"
)

// Notifier publishes on a PostgreSQL NOTIFY channel.  The training log uses
// it to announce new rows so a retraining job can LISTEN instead of polling.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier constructs a new Notifier for channel.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{DB: db, Channel: channel}
}

// Notify sends payload on the channel.  pg_notify is used because NOTIFY
// does not accept bind parameters.
func (n *Notifier) Notify(ctx context.Context, payload string) error {
	_, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, payload)
	return err
}
