package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

func decodeFloat32Slice(raw []byte) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func scanTopic(row rowScanner) (*types.Topic, error) {
	var t types.Topic
	var keywordsJSON, groupsJSON, centroidJSON sql.NullString
	if err := row.Scan(&t.TopicKey, &t.DisplayName, &t.Category, &keywordsJSON, &groupsJSON, &centroidJSON, &t.Active); err != nil {
		return nil, err
	}
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &t.Keywords); err != nil {
			return nil, fmt.Errorf("decode topic keywords: %w", err)
		}
	}
	if groupsJSON.Valid && groupsJSON.String != "" {
		if err := json.Unmarshal([]byte(groupsJSON.String), &t.KeywordGroups); err != nil {
			return nil, fmt.Errorf("decode topic keyword groups: %w", err)
		}
	}
	if centroidJSON.Valid && centroidJSON.String != "" {
		vec, err := decodeFloat32Slice([]byte(centroidJSON.String))
		if err != nil {
			return nil, fmt.Errorf("decode topic centroid: %w", err)
		}
		t.CentroidEmbedding = vec
	}
	return &t, nil
}

func (s *Store) ActiveTopics(ctx context.Context) ([]*types.Topic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic_key, display_name, category, keywords, keyword_groups, centroid_embedding, active
		FROM topic WHERE active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("mysql: active topics: %w", err)
	}
	defer rows.Close()

	var out []*types.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTopic(ctx context.Context, topicKey string) (*types.Topic, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT topic_key, display_name, category, keywords, keyword_groups, centroid_embedding, active
		FROM topic WHERE topic_key = ?`, topicKey)
	t, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get topic: %w", err)
	}
	return t, nil
}
