package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clariona/mediawatch/internal/store"
)

func (s *Store) GetCursor(ctx context.Context, dataset string) (int64, error) {
	var cursor int64
	row := s.db.QueryRowContext(ctx, `SELECT cursor_value FROM tailer_cursor WHERE dataset = ?`, dataset)
	err := row.Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("mysql: get cursor: %w", err)
	}
	return cursor, nil
}

func (s *Store) SetCursor(ctx context.Context, dataset string, cursor int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tailer_cursor (dataset, cursor_value) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE cursor_value = VALUES(cursor_value)`, dataset, cursor)
		return err
	})
}

func (s *Store) GetOverride(ctx context.Context, key string) (string, bool, error) {
	var value string
	row := s.db.QueryRowContext(ctx, `SELECT config_value FROM config_override WHERE config_key = ?`, key)
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mysql: get override: %w", err)
	}
	return value, true, nil
}

func (s *Store) SetOverride(ctx context.Context, key, value string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO config_override (config_key, config_value) VALUES (?, ?)
			ON DUPLICATE KEY UPDATE config_value = VALUES(config_value)`, key, value)
		return err
	})
}

var (
	_ store.CursorStore         = (*Store)(nil)
	_ store.ConfigOverrideStore = (*Store)(nil)
	_ store.MentionStore        = (*Store)(nil)
	_ store.TopicStore          = (*Store)(nil)
	_ store.Store               = (*Store)(nil)
)
