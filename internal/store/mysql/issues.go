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

const issueColumns = `issue_id, topic_key, issue_slug, issue_label, state, priority_score, priority_band,
	mention_count, start_time, last_activity, centroid_embedding`

func scanIssue(row rowScanner) (*types.Issue, error) {
	var iss types.Issue
	var centroidJSON sql.NullString
	if err := row.Scan(
		&iss.IssueID, &iss.TopicKey, &iss.IssueSlug, &iss.IssueLabel, &iss.State,
		&iss.PriorityScore, &iss.PriorityBand, &iss.MentionCount,
		&iss.StartTime, &iss.LastActivity, &centroidJSON,
	); err != nil {
		return nil, err
	}
	if centroidJSON.Valid && centroidJSON.String != "" {
		vec, err := decodeFloat32Slice([]byte(centroidJSON.String))
		if err != nil {
			return nil, fmt.Errorf("decode issue centroid: %w", err)
		}
		iss.CentroidEmbedding = vec
	}
	return &iss, nil
}

func (s *Store) ActiveIssuesForTopic(ctx context.Context, topicKey string) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+issueColumns+` FROM topic_issue
		WHERE topic_key = ? AND state NOT IN ('resolved', 'archived')`, topicKey)
	if err != nil {
		return nil, fmt.Errorf("mysql: active issues for topic: %w", err)
	}
	defer rows.Close()

	var out []*types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iss)
	}
	return out, rows.Err()
}

func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue) (int64, error) {
	var issueID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		centroidJSON, err := json.Marshal(issue.CentroidEmbedding)
		if err != nil {
			return fmt.Errorf("marshal centroid: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO topic_issue (topic_key, issue_slug, issue_label, state, priority_score,
				priority_band, mention_count, start_time, last_activity, centroid_embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.TopicKey, issue.IssueSlug, issue.IssueLabel, issue.State, issue.PriorityScore,
			issue.PriorityBand, issue.MentionCount, issue.StartTime, issue.LastActivity, string(centroidJSON))
		if err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
		issueID, err = res.LastInsertId()
		return err
	})
	return issueID, err
}

func (s *Store) UpdateIssue(ctx context.Context, issue *types.Issue) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		centroidJSON, err := json.Marshal(issue.CentroidEmbedding)
		if err != nil {
			return fmt.Errorf("marshal centroid: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE topic_issue SET issue_label = ?, state = ?, priority_score = ?, priority_band = ?,
				mention_count = ?, last_activity = ?, centroid_embedding = ?
			WHERE issue_id = ?`,
			issue.IssueLabel, issue.State, issue.PriorityScore, issue.PriorityBand,
			issue.MentionCount, issue.LastActivity, string(centroidJSON), issue.IssueID)
		return err
	})
}

func (s *Store) RecordTransition(ctx context.Context, t types.IssueTransition) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO issue_transition (issue_id, from_state, to_state, reason, at)
			VALUES (?, ?, ?, ?, ?)`, t.IssueID, t.From, t.To, t.Reason, t.At)
		return err
	})
}

func (s *Store) AddIssueMentions(ctx context.Context, links []types.IssueMention) error {
	if len(links) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, link := range links {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO issue_mention (issue_id, mention_id, similarity_score, detected_at)
				VALUES (?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE similarity_score = VALUES(similarity_score)`,
				link.IssueID, link.MentionID, link.SimilarityScore, link.DetectedAt); err != nil {
				return fmt.Errorf("add issue mention: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) AllNonArchivedIssues(ctx context.Context) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+issueColumns+` FROM topic_issue WHERE state != 'archived'`)
	if err != nil {
		return nil, fmt.Errorf("mysql: all non-archived issues: %w", err)
	}
	defer rows.Close()

	var out []*types.Issue
	for rows.Next() {
		iss, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iss)
	}
	return out, rows.Err()
}

func (s *Store) IssueMentionCountLastHour(ctx context.Context, issueID int64, now time.Time) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issue_mention WHERE issue_id = ? AND detected_at >= ?`,
		issueID, now.Add(-time.Hour))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("mysql: issue mention count last hour: %w", err)
	}
	return n, nil
}

// IssueVelocity returns mentions-per-hour for issueID over [windowStart, windowEnd),
// the rate term priority scoring uses (§4.5.5).
func (s *Store) IssueVelocity(ctx context.Context, issueID int64, windowStart, windowEnd time.Time) (float64, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM issue_mention WHERE issue_id = ? AND detected_at >= ? AND detected_at < ?`,
		issueID, windowStart, windowEnd)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("mysql: issue velocity: %w", err)
	}
	hours := windowEnd.Sub(windowStart).Hours()
	if hours <= 0 {
		return 0, nil
	}
	return float64(count) / hours, nil
}

func (s *Store) LastIssueMentionAt(ctx context.Context, issueID int64) (time.Time, bool, error) {
	var t time.Time
	row := s.db.QueryRowContext(ctx, `
		SELECT detected_at FROM issue_mention WHERE issue_id = ? ORDER BY detected_at DESC LIMIT 1`, issueID)
	err := row.Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("mysql: last issue mention: %w", err)
	}
	return t, true, nil
}

func (s *Store) MentionIDsForIssue(ctx context.Context, issueID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mention_id FROM issue_mention WHERE issue_id = ?`, issueID)
	if err != nil {
		return nil, fmt.Errorf("mysql: mention ids for issue: %w", err)
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

var _ store.IssueStore = (*Store)(nil)
