package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

func (s *Store) UpsertAggregation(ctx context.Context, a *types.Aggregation) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		sentJSON, err := json.Marshal(a.SentimentDistribution)
		if err != nil {
			return fmt.Errorf("marshal sentiment distribution: %w", err)
		}
		emoJSON, err := json.Marshal(a.EmotionDistribution)
		if err != nil {
			return fmt.Errorf("marshal emotion distribution: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO aggregation (
				subject_kind, subject_key, window_size, window_start, window_end,
				weighted_sentiment_score, sentiment_index, sentiment_distribution,
				emotion_distribution, emotion_adjusted_severity, mention_count, total_influence_weight
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				window_end = VALUES(window_end),
				weighted_sentiment_score = VALUES(weighted_sentiment_score),
				sentiment_index = VALUES(sentiment_index),
				sentiment_distribution = VALUES(sentiment_distribution),
				emotion_distribution = VALUES(emotion_distribution),
				emotion_adjusted_severity = VALUES(emotion_adjusted_severity),
				mention_count = VALUES(mention_count),
				total_influence_weight = VALUES(total_influence_weight)`,
			a.SubjectKind, a.SubjectKey, a.WindowSize, a.WindowStart, a.WindowEnd,
			a.WeightedSentimentScore, a.SentimentIndex, string(sentJSON),
			string(emoJSON), a.EmotionAdjustedSeverity, a.MentionCount, a.TotalInfluenceWeight)
		if err != nil {
			return fmt.Errorf("upsert aggregation: %w", err)
		}
		return nil
	})
}

func scanAggregation(row rowScanner) (*types.Aggregation, error) {
	var a types.Aggregation
	var sentJSON, emoJSON sql.NullString
	if err := row.Scan(
		&a.SubjectKind, &a.SubjectKey, &a.WindowSize, &a.WindowStart, &a.WindowEnd,
		&a.WeightedSentimentScore, &a.SentimentIndex, &sentJSON,
		&emoJSON, &a.EmotionAdjustedSeverity, &a.MentionCount, &a.TotalInfluenceWeight,
	); err != nil {
		return nil, err
	}
	if sentJSON.Valid && sentJSON.String != "" {
		if err := json.Unmarshal([]byte(sentJSON.String), &a.SentimentDistribution); err != nil {
			return nil, fmt.Errorf("decode sentiment distribution: %w", err)
		}
	}
	if emoJSON.Valid && emoJSON.String != "" {
		if err := json.Unmarshal([]byte(emoJSON.String), &a.EmotionDistribution); err != nil {
			return nil, fmt.Errorf("decode emotion distribution: %w", err)
		}
	}
	return &a, nil
}

const aggregationColumns = `subject_kind, subject_key, window_size, window_start, window_end,
	weighted_sentiment_score, sentiment_index, sentiment_distribution,
	emotion_distribution, emotion_adjusted_severity, mention_count, total_influence_weight`

func (s *Store) GetAggregation(ctx context.Context, kind types.SubjectKind, key string, w types.WindowSize, windowStart time.Time) (*types.Aggregation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+aggregationColumns+` FROM aggregation
		WHERE subject_kind = ? AND subject_key = ? AND window_size = ? AND window_start = ?`,
		kind, key, w, windowStart)
	a, err := scanAggregation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get aggregation: %w", err)
	}
	return a, nil
}

// PreviousAggregation returns the aggregation row for the window immediately
// preceding windowStart, the comparison baseline for trend computation (§4.5.7).
func (s *Store) PreviousAggregation(ctx context.Context, kind types.SubjectKind, key string, w types.WindowSize, windowStart time.Time) (*types.Aggregation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+aggregationColumns+` FROM aggregation
		WHERE subject_kind = ? AND subject_key = ? AND window_size = ? AND window_start < ?
		ORDER BY window_start DESC LIMIT 1`,
		kind, key, w, windowStart)
	a, err := scanAggregation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: previous aggregation: %w", err)
	}
	return a, nil
}

func (s *Store) UpsertTrend(ctx context.Context, tr *types.Trend) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trend (subject_kind, subject_key, window_size, window_start,
				current_sentiment_index, previous_sentiment_index, direction, magnitude)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				current_sentiment_index = VALUES(current_sentiment_index),
				previous_sentiment_index = VALUES(previous_sentiment_index),
				direction = VALUES(direction),
				magnitude = VALUES(magnitude)`,
			tr.SubjectKind, tr.SubjectKey, tr.WindowSize, tr.WindowStart,
			tr.CurrentSentimentIndex, tr.PreviousSentimentIndex, tr.Direction, tr.Magnitude)
		return err
	})
}

func (s *Store) UpsertBaseline(ctx context.Context, b *types.Baseline) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO baseline (topic_key, baseline_sentiment_index, computed_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE baseline_sentiment_index = VALUES(baseline_sentiment_index),
				computed_at = VALUES(computed_at)`,
			b.TopicKey, b.BaselineSentimentIndex, b.ComputedAt)
		return err
	})
}

func (s *Store) GetBaseline(ctx context.Context, topicKey string) (*types.Baseline, error) {
	var b types.Baseline
	row := s.db.QueryRowContext(ctx, `
		SELECT topic_key, baseline_sentiment_index, computed_at FROM baseline WHERE topic_key = ?`, topicKey)
	err := row.Scan(&b.TopicKey, &b.BaselineSentimentIndex, &b.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get baseline: %w", err)
	}
	return &b, nil
}

// SentimentIndexHistory returns the historical sentiment_index values for a
// topic's windows since the given time, oldest first, the input series for
// median-based baseline computation (§4.5.8).
func (s *Store) SentimentIndexHistory(ctx context.Context, topicKey string, w types.WindowSize, since time.Time) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sentiment_index FROM aggregation
		WHERE subject_kind = ? AND subject_key = ? AND window_size = ? AND window_start >= ?
		ORDER BY window_start ASC`, types.SubjectTopic, topicKey, w, since)
	if err != nil {
		return nil, fmt.Errorf("mysql: sentiment index history: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

var _ store.AggregationStore = (*Store)(nil)
