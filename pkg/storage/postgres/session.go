package postgres

import (
	"context"
	"errors"
	"time"

	"termbridge/pkg/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ storage.Journal = (*PostgresClient)(nil)

// SessionOpened inserts the session row. Re-opening a known session id is a no-op.
func (p *PostgresClient) SessionOpened(ctx context.Context, e storage.SessionEntry) error {
	record := ToSessionRecord(e)
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(record).Error
}

// SessionClosed stamps the close time and final counters, inserting the row
// when the open was never recorded.
func (p *PostgresClient) SessionClosed(ctx context.Context, e storage.SessionEntry) error {
	record := ToSessionRecord(e)
	if record.OpenedAt.IsZero() {
		record.OpenedAt = *record.ClosedAt
	}
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"closed_at", "subscriptions", "received", "sent", "updated_at"}),
	}).Create(record).Error
}

func (p *PostgresClient) Session(ctx context.Context, id string) (storage.SessionEntry, error) {
	var record SessionRecord
	err := p.DB.WithContext(ctx).Where("session_id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.SessionEntry{}, storage.ErrSessionNotFound
	}
	if err != nil {
		return storage.SessionEntry{}, err
	}
	return record.Entry(), nil
}

// OpenSessions lists sessions without a close time, e.g. left behind by a crash.
func (p *PostgresClient) OpenSessions(ctx context.Context) ([]storage.SessionEntry, error) {
	var records []SessionRecord
	err := p.DB.WithContext(ctx).
		Where("closed_at IS NULL").
		Order("opened_at").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]storage.SessionEntry, 0, len(records))
	for _, r := range records {
		out = append(out, r.Entry())
	}
	return out, nil
}

func (p *PostgresClient) DeleteClosedSessions(ctx context.Context, before time.Time) error {
	return p.DB.WithContext(ctx).
		Where("closed_at IS NOT NULL AND closed_at < ?", before).
		Delete(&SessionRecord{}).Error
}

// ToSessionRecord converts a journal entry into a row for insertion.
func ToSessionRecord(e storage.SessionEntry) *SessionRecord {
	record := &SessionRecord{
		SessionID:     e.ID,
		Remote:        e.Remote,
		OpenedAt:      e.OpenedAt.UTC(),
		Subscriptions: append([]string{}, e.Subscriptions...),
		Received:      e.Received,
		Sent:          e.Sent,
	}
	if !e.ClosedAt.IsZero() {
		closed := e.ClosedAt.UTC()
		record.ClosedAt = &closed
	}
	return record
}

// Entry converts a row back into a journal entry.
func (r SessionRecord) Entry() storage.SessionEntry {
	e := storage.SessionEntry{
		ID:            r.SessionID,
		Remote:        r.Remote,
		OpenedAt:      r.OpenedAt,
		Subscriptions: append([]string{}, r.Subscriptions...),
		Received:      r.Received,
		Sent:          r.Sent,
	}
	if r.ClosedAt != nil {
		e.ClosedAt = *r.ClosedAt
	}
	return e
}
