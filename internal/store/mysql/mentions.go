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

const mentionColumns = `entry_id, source_id, url, fingerprint, platform, source_type, source_name, query_text,
	collected_at, published_at, language, country, title, text_body,
	author_handle, author_display_name, author_avatar, author_location, author_verified,
	likes, shares, comments, direct_reach, cumulative_reach, reach_tier,
	sentiment_label, sentiment_score, sentiment_justification,
	emotion_label, emotion_score, emotion_distribution,
	influence_weight, confidence_weight, location_label, location_confidence,
	ministry_hint, issue_slug, issue_label, issue_confidence,
	processing_status, processing_started_at, processing_completed_at,
	processing_failed_at, processing_failure_reason`

func scanMention(row rowScanner) (*types.Mention, error) {
	var m types.Mention
	var sentimentLabel, emotionLabel, locationLabel sql.NullString
	var sentimentScore, emotionScore, influenceWeight, confidenceWeight, locationConfidence, issueConfidence sql.NullFloat64
	var emotionDistJSON sql.NullString
	var startedAt, completedAt, failedAt sql.NullTime

	err := row.Scan(
		&m.EntryID, &m.SourceID, &m.URL, &m.Fingerprint, &m.Platform, &m.SourceType, &m.SourceName, &m.Query,
		&m.CollectedAt, &m.PublishedAt, &m.Language, &m.Country, &m.Title, &m.Text,
		&m.AuthorHandle, &m.AuthorDisplayName, &m.AuthorAvatar, &m.AuthorLocation, &m.AuthorVerified,
		&m.Likes, &m.Shares, &m.Comments, &m.DirectReach, &m.CumulativeReach, &m.ReachTier,
		&sentimentLabel, &sentimentScore, &m.SentimentJustification,
		&emotionLabel, &emotionScore, &emotionDistJSON,
		&influenceWeight, &confidenceWeight, &locationLabel, &locationConfidence,
		&m.MinistryHint, &m.IssueSlug, &m.IssueLabel, &issueConfidence,
		&m.ProcessingStatus, &startedAt, &completedAt, &failedAt, &m.ProcessingFailureReason,
	)
	if err != nil {
		return nil, err
	}

	if sentimentLabel.Valid {
		l := types.SentimentLabel(sentimentLabel.String)
		m.SentimentLabel = &l
	}
	if sentimentScore.Valid {
		v := sentimentScore.Float64
		m.SentimentScore = &v
	}
	if emotionLabel.Valid {
		l := types.EmotionLabel(emotionLabel.String)
		m.EmotionLabel = &l
	}
	if emotionScore.Valid {
		v := emotionScore.Float64
		m.EmotionScore = &v
	}
	if emotionDistJSON.Valid && emotionDistJSON.String != "" {
		_ = json.Unmarshal([]byte(emotionDistJSON.String), &m.EmotionDistribution)
	}
	if influenceWeight.Valid {
		v := influenceWeight.Float64
		m.InfluenceWeight = &v
	}
	if confidenceWeight.Valid {
		v := confidenceWeight.Float64
		m.ConfidenceWeight = &v
	}
	if locationLabel.Valid {
		m.LocationLabel = &locationLabel.String
	}
	if locationConfidence.Valid {
		v := locationConfidence.Float64
		m.LocationConfidence = &v
	}
	if issueConfidence.Valid {
		v := issueConfidence.Float64
		m.IssueConfidence = &v
	}
	if startedAt.Valid {
		m.ProcessingStartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		m.ProcessingCompletedAt = &completedAt.Time
	}
	if failedAt.Valid {
		m.ProcessingFailedAt = &failedAt.Time
	}

	return &m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) FindByKey(ctx context.Context, key store.MentionLookupKey) (*types.Mention, error) {
	var row *sql.Row
	switch {
	case key.SourceID != "":
		row = s.db.QueryRowContext(ctx, `SELECT `+mentionColumns+` FROM mention WHERE platform = ? AND source_id = ?`, key.Platform, key.SourceID)
	case key.URL != "":
		row = s.db.QueryRowContext(ctx, `SELECT `+mentionColumns+` FROM mention WHERE platform = ? AND url = ?`, key.Platform, key.URL)
	case key.Fingerprint != "":
		row = s.db.QueryRowContext(ctx, `SELECT `+mentionColumns+` FROM mention WHERE platform = ? AND fingerprint = ?`, key.Platform, key.Fingerprint)
	default:
		return nil, store.ErrNotFound
	}

	m, err := scanMention(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: find by key: %w", err)
	}
	return m, nil
}

func (s *Store) FindNearDuplicates(ctx context.Context, platform string, since time.Time) ([]*types.Mention, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mentionColumns+` FROM mention WHERE platform = ? AND collected_at >= ?`, platform, since)
	if err != nil {
		return nil, fmt.Errorf("mysql: near-duplicate scan: %w", err)
	}
	defer rows.Close()

	var out []*types.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, m *types.Mention) (int64, error) {
	var entryID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO mention (
				source_id, url, fingerprint, platform, source_type, source_name, query_text,
				collected_at, published_at, language, country, title, text_body,
				author_handle, author_display_name, author_avatar, author_location, author_verified,
				likes, shares, comments, direct_reach, cumulative_reach, reach_tier,
				processing_status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.SourceID, m.URL, m.Fingerprint, m.Platform, m.SourceType, m.SourceName, m.Query,
			m.CollectedAt, m.PublishedAt, m.Language, m.Country, m.Title, m.Text,
			m.AuthorHandle, m.AuthorDisplayName, m.AuthorAvatar, m.AuthorLocation, m.AuthorVerified,
			m.Likes, m.Shares, m.Comments, m.DirectReach, m.CumulativeReach, m.ReachTier,
			types.StatusPending,
		)
		if err != nil {
			return fmt.Errorf("insert mention: %w", err)
		}
		entryID, err = res.LastInsertId()
		return err
	})
	return entryID, err
}

func (s *Store) UpdateEngagement(ctx context.Context, entryID int64, eng store.EngagementUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE mention SET likes = ?, shares = ?, comments = ?, direct_reach = ?, cumulative_reach = ?
			WHERE entry_id = ?`,
			eng.Likes, eng.Shares, eng.Comments, eng.DirectReach, eng.CumulativeReach, entryID)
		return err
	})
}

// ClaimBatch implements §4.4's dispatcher claim: select pending rows under
// skip-locked semantics, flip to processing, commit — all in one short
// transaction, per §5 ("Long transactions are forbidden").
func (s *Store) ClaimBatch(ctx context.Context, batchSize int) ([]*types.Mention, error) {
	var claimed []*types.Mention
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT entry_id FROM mention
			WHERE sentiment_label IS NULL AND processing_status = 'pending'
			ORDER BY entry_id
			LIMIT ?
			FOR UPDATE SKIP LOCKED`, batchSize)
		if err != nil {
			return fmt.Errorf("claim select: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(ids) == 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `
				UPDATE mention SET processing_status = 'processing', processing_started_at = ?
				WHERE entry_id = ? AND processing_status = 'pending'`, now, id); err != nil {
				return fmt.Errorf("claim update %d: %w", id, err)
			}
		}

		placeholders, args := inClause(ids)
		crows, err := tx.QueryContext(ctx, `SELECT `+mentionColumns+` FROM mention WHERE entry_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("claim reload: %w", err)
		}
		defer crows.Close()
		for crows.Next() {
			m, err := scanMention(crows)
			if err != nil {
				return err
			}
			claimed = append(claimed, m)
		}
		return crows.Err()
	})
	return claimed, err
}

func inClause(ids []int64) (string, []any) {
	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}
	return placeholders, args
}

// CommitAnalysis writes every analysis field plus the terminal
// processing_status in one transaction (§4.4 "Commit").
func (s *Store) CommitAnalysis(ctx context.Context, r *store.AnalysisResult) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		distJSON, err := json.Marshal(r.EmotionDistribution)
		if err != nil {
			return fmt.Errorf("marshal emotion distribution: %w", err)
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE mention SET
				sentiment_label = ?, sentiment_score = ?, sentiment_justification = ?,
				emotion_label = ?, emotion_score = ?, emotion_distribution = ?,
				influence_weight = ?, confidence_weight = ?,
				location_label = ?, location_confidence = ?,
				ministry_hint = ?, issue_slug = ?, issue_label = ?, issue_confidence = ?,
				processing_status = 'completed', processing_completed_at = ?
			WHERE entry_id = ?`,
			r.SentimentLabel, r.SentimentScore, r.SentimentJustification,
			r.EmotionLabel, r.EmotionScore, string(distJSON),
			r.InfluenceWeight, r.ConfidenceWeight,
			r.LocationLabel, r.LocationConfidence,
			r.MinistryHint, r.IssueSlug, r.IssueLabel, nullableFloat(r.IssueConfidence),
			now, r.EntryID,
		)
		if err != nil {
			return fmt.Errorf("commit analysis: %w", err)
		}

		vecJSON, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO embedding (entry_id, vector, model) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE vector = VALUES(vector), model = VALUES(model)`,
			r.EntryID, string(vecJSON), r.Model); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}

		for _, mt := range r.Topics {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO mention_topic (mention_id, topic_key, keyword_score, embedding_score, topic_confidence)
				VALUES (?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE keyword_score = VALUES(keyword_score),
					embedding_score = VALUES(embedding_score), topic_confidence = VALUES(topic_confidence)`,
				r.EntryID, mt.TopicKey, mt.KeywordScore, mt.EmbeddingScore, mt.TopicConfidence); err != nil {
				return fmt.Errorf("insert mention_topic %s: %w", mt.TopicKey, err)
			}
		}

		for _, link := range r.IssueLinks {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO issue_mention (issue_id, mention_id, similarity_score, detected_at)
				VALUES (?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE similarity_score = VALUES(similarity_score)`,
				link.IssueID, link.MentionID, link.SimilarityScore, link.DetectedAt); err != nil {
				return fmt.Errorf("insert issue_mention: %w", err)
			}
		}

		return nil
	})
}

func nullableFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func (s *Store) MarkFailed(ctx context.Context, entryID int64, reason string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE mention SET processing_status = 'failed', processing_failed_at = ?, processing_failure_reason = ?
			WHERE entry_id = ?`, time.Now().UTC(), reason, entryID)
		return err
	})
}

// ReclaimStale is the janitor's core operation: processing rows claimed
// longer than staleClaimTimeout ago revert to pending (§4.4 "Self-healing").
func (s *Store) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	var n int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE mention SET processing_status = 'pending', processing_started_at = NULL
			WHERE processing_status = 'processing' AND processing_started_at < ?`, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

func (s *Store) RecentlyAnalyzedUnissued(ctx context.Context, topicKey string, window time.Duration) ([]*types.Mention, error) {
	since := time.Now().UTC().Add(-window)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mentionColumns+` FROM mention m
		WHERE m.sentiment_label IS NOT NULL
		  AND m.published_at >= ?
		  AND EXISTS (SELECT 1 FROM mention_topic mt WHERE mt.mention_id = m.entry_id AND mt.topic_key = ?)
		  AND NOT EXISTS (
		    SELECT 1 FROM issue_mention im
		    JOIN topic_issue ti ON ti.issue_id = im.issue_id
		    WHERE im.mention_id = m.entry_id AND ti.topic_key = ?
		  )`, since, topicKey, topicKey)
	if err != nil {
		return nil, fmt.Errorf("mysql: recently analyzed unissued: %w", err)
	}
	defer rows.Close()

	var out []*types.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) EmbeddingsFor(ctx context.Context, entryIDs []int64) (map[int64][]float32, error) {
	out := make(map[int64][]float32, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	placeholders, args := inClause(entryIDs)
	rows, err := s.db.QueryContext(ctx, `SELECT entry_id, vector FROM embedding WHERE entry_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: embeddings for: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var vecJSON string
		if err := rows.Scan(&id, &vecJSON); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			return nil, fmt.Errorf("mysql: unmarshal embedding %d: %w", id, err)
		}
		out[id] = vec
	}
	return out, rows.Err()
}

func (s *Store) MentionIDsForTopic(ctx context.Context, topicKey string, start, end time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.entry_id FROM mention m
		JOIN mention_topic mt ON mt.mention_id = m.entry_id
		WHERE mt.topic_key = ? AND m.published_at >= ? AND m.published_at < ?`, topicKey, start, end)
	if err != nil {
		return nil, fmt.Errorf("mysql: mention ids for topic: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) MentionsInWindow(ctx context.Context, entryIDs []int64, start, end time.Time) ([]*types.Mention, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(entryIDs)
	args = append(args, start, end)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mentionColumns+` FROM mention
		WHERE entry_id IN (`+placeholders+`) AND published_at >= ? AND published_at < ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: mentions in window: %w", err)
	}
	defer rows.Close()

	var out []*types.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
