package mysql

import "context"

// schemaStatements is the semantic schema from spec §6.1, expressed as
// idempotent DDL. JSON-valued columns (emotion_distribution, keywords,
// keyword_groups, centroid embeddings) use MySQL's native JSON type; the
// analysis claim query relies on MySQL 8's SELECT ... FOR UPDATE SKIP
// LOCKED support.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS mention (
		entry_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		source_id VARCHAR(512) NOT NULL DEFAULT '',
		url VARCHAR(2048) NOT NULL DEFAULT '',
		fingerprint CHAR(64) NOT NULL DEFAULT '',
		platform VARCHAR(64) NOT NULL,
		source_type VARCHAR(32) NOT NULL DEFAULT '',
		source_name VARCHAR(255) NOT NULL DEFAULT '',
		query_text VARCHAR(512) NOT NULL DEFAULT '',
		collected_at DATETIME(6) NOT NULL,
		published_at DATETIME(6) NOT NULL,
		language VARCHAR(16) NOT NULL DEFAULT '',
		country VARCHAR(64) NOT NULL DEFAULT '',
		title TEXT,
		text_body TEXT,
		author_handle VARCHAR(255) NOT NULL DEFAULT '',
		author_display_name VARCHAR(255) NOT NULL DEFAULT '',
		author_avatar VARCHAR(2048) NOT NULL DEFAULT '',
		author_location VARCHAR(255) NOT NULL DEFAULT '',
		author_verified BOOLEAN NOT NULL DEFAULT FALSE,
		likes BIGINT NOT NULL DEFAULT 0,
		shares BIGINT NOT NULL DEFAULT 0,
		comments BIGINT NOT NULL DEFAULT 0,
		direct_reach BIGINT NOT NULL DEFAULT 0,
		cumulative_reach BIGINT NOT NULL DEFAULT 0,
		reach_tier VARCHAR(16) NOT NULL DEFAULT 'low',
		sentiment_label VARCHAR(16),
		sentiment_score DOUBLE,
		sentiment_justification TEXT,
		emotion_label VARCHAR(16),
		emotion_score DOUBLE,
		emotion_distribution JSON,
		influence_weight DOUBLE,
		confidence_weight DOUBLE,
		location_label VARCHAR(128),
		location_confidence DOUBLE,
		ministry_hint VARCHAR(64) NOT NULL DEFAULT '',
		issue_slug VARCHAR(128) NOT NULL DEFAULT '',
		issue_label VARCHAR(255) NOT NULL DEFAULT '',
		issue_confidence DOUBLE,
		processing_status VARCHAR(16) NOT NULL DEFAULT 'pending',
		processing_started_at DATETIME(6),
		processing_completed_at DATETIME(6),
		processing_failed_at DATETIME(6),
		processing_failure_reason VARCHAR(255) NOT NULL DEFAULT '',
		UNIQUE KEY uq_platform_source (platform, source_id),
		KEY idx_claim (sentiment_label, processing_status),
		KEY idx_platform_source (platform, source_id),
		KEY idx_platform_fingerprint (platform, fingerprint),
		KEY idx_published_at (published_at)
	)`,
	`CREATE TABLE IF NOT EXISTS embedding (
		entry_id BIGINT PRIMARY KEY,
		vector JSON NOT NULL,
		model VARCHAR(128) NOT NULL,
		FOREIGN KEY (entry_id) REFERENCES mention(entry_id)
	)`,
	`CREATE TABLE IF NOT EXISTS topic (
		topic_key VARCHAR(64) PRIMARY KEY,
		display_name VARCHAR(255) NOT NULL,
		category VARCHAR(64) NOT NULL DEFAULT '',
		keywords JSON,
		keyword_groups JSON,
		centroid_embedding JSON,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS mention_topic (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		mention_id BIGINT NOT NULL,
		topic_key VARCHAR(64) NOT NULL,
		keyword_score DOUBLE NOT NULL,
		embedding_score DOUBLE NOT NULL,
		topic_confidence DOUBLE NOT NULL,
		UNIQUE KEY uq_mention_topic (mention_id, topic_key)
	)`,
	`CREATE TABLE IF NOT EXISTS topic_issue (
		issue_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		topic_key VARCHAR(64) NOT NULL,
		issue_slug VARCHAR(128) NOT NULL,
		issue_label VARCHAR(255) NOT NULL DEFAULT '',
		state VARCHAR(16) NOT NULL,
		priority_score DOUBLE NOT NULL DEFAULT 0,
		priority_band VARCHAR(16) NOT NULL DEFAULT 'low',
		mention_count INT NOT NULL DEFAULT 0,
		start_time DATETIME(6) NOT NULL,
		last_activity DATETIME(6) NOT NULL,
		centroid_embedding JSON,
		UNIQUE KEY uq_topic_slug (topic_key, issue_slug)
	)`,
	`CREATE TABLE IF NOT EXISTS issue_transition (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		issue_id BIGINT NOT NULL,
		from_state VARCHAR(16) NOT NULL,
		to_state VARCHAR(16) NOT NULL,
		reason VARCHAR(512) NOT NULL,
		at DATETIME(6) NOT NULL,
		KEY idx_issue (issue_id)
	)`,
	`CREATE TABLE IF NOT EXISTS issue_mention (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		issue_id BIGINT NOT NULL,
		mention_id BIGINT NOT NULL,
		similarity_score DOUBLE NOT NULL,
		detected_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_issue_mention (issue_id, mention_id),
		KEY idx_issue_id (issue_id)
	)`,
	`CREATE TABLE IF NOT EXISTS aggregation (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		subject_kind VARCHAR(16) NOT NULL,
		subject_key VARCHAR(128) NOT NULL,
		window_size VARCHAR(8) NOT NULL,
		window_start DATETIME(6) NOT NULL,
		window_end DATETIME(6) NOT NULL,
		weighted_sentiment_score DOUBLE NOT NULL,
		sentiment_index INT NOT NULL,
		sentiment_distribution JSON,
		emotion_distribution JSON,
		emotion_adjusted_severity DOUBLE NOT NULL,
		mention_count INT NOT NULL,
		total_influence_weight DOUBLE NOT NULL,
		UNIQUE KEY uq_aggregation (subject_kind, subject_key, window_size, window_start),
		KEY idx_aggregation_end (subject_kind, subject_key, window_size, window_end)
	)`,
	`CREATE TABLE IF NOT EXISTS trend (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		subject_kind VARCHAR(16) NOT NULL,
		subject_key VARCHAR(128) NOT NULL,
		window_size VARCHAR(8) NOT NULL,
		window_start DATETIME(6) NOT NULL,
		current_sentiment_index INT NOT NULL,
		previous_sentiment_index INT NOT NULL,
		direction VARCHAR(16) NOT NULL,
		magnitude INT NOT NULL,
		UNIQUE KEY uq_trend (subject_kind, subject_key, window_size, window_start)
	)`,
	`CREATE TABLE IF NOT EXISTS baseline (
		topic_key VARCHAR(64) PRIMARY KEY,
		baseline_sentiment_index DOUBLE NOT NULL,
		computed_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tailer_cursor (
		dataset VARCHAR(128) PRIMARY KEY,
		cursor_value BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS config_override (
		config_key VARCHAR(255) PRIMARY KEY,
		config_value TEXT NOT NULL
	)`,
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
