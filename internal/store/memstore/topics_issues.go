package memstore

import (
	"context"
	"time"

	"github.com/clariona/mediawatch/internal/store"
	"github.com/clariona/mediawatch/internal/types"
)

func cloneTopic(t *types.Topic) *types.Topic {
	cp := *t
	return &cp
}

func (s *Store) ActiveTopics(ctx context.Context) ([]*types.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Topic
	for _, t := range s.topics {
		if t.Active {
			out = append(out, cloneTopic(t))
		}
	}
	return out, nil
}

func (s *Store) GetTopic(ctx context.Context, topicKey string) (*types.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[topicKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTopic(t), nil
}

func cloneIssue(i *types.Issue) *types.Issue {
	cp := *i
	return &cp
}

func (s *Store) ActiveIssuesForTopic(ctx context.Context, topicKey string) ([]*types.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Issue
	for _, iss := range s.issues {
		if iss.TopicKey == topicKey && iss.State != types.IssueResolved && iss.State != types.IssueArchived {
			out = append(out, cloneIssue(iss))
		}
	}
	return out, nil
}

func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextIssue++
	id := s.nextIssue
	cp := cloneIssue(issue)
	cp.IssueID = id
	s.issues[id] = cp
	return id, nil
}

func (s *Store) UpdateIssue(ctx context.Context, issue *types.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[issue.IssueID]; !ok {
		return store.ErrNotFound
	}
	s.issues[issue.IssueID] = cloneIssue(issue)
	return nil
}

func (s *Store) RecordTransition(ctx context.Context, t types.IssueTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issueTransitions = append(s.issueTransitions, t)
	return nil
}

func (s *Store) AddIssueMentions(ctx context.Context, links []types.IssueMention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issueMentions = append(s.issueMentions, links...)
	return nil
}

func (s *Store) AllNonArchivedIssues(ctx context.Context) ([]*types.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Issue
	for _, iss := range s.issues {
		if iss.State != types.IssueArchived {
			out = append(out, cloneIssue(iss))
		}
	}
	return out, nil
}

func (s *Store) IssueMentionCountLastHour(ctx context.Context, issueID int64, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-time.Hour)
	n := 0
	for _, link := range s.issueMentions {
		if link.IssueID == issueID && !link.DetectedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

func (s *Store) IssueVelocity(ctx context.Context, issueID int64, windowStart, windowEnd time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, link := range s.issueMentions {
		if link.IssueID == issueID && !link.DetectedAt.Before(windowStart) && link.DetectedAt.Before(windowEnd) {
			count++
		}
	}
	hours := windowEnd.Sub(windowStart).Hours()
	if hours <= 0 {
		return 0, nil
	}
	return float64(count) / hours, nil
}

func (s *Store) LastIssueMentionAt(ctx context.Context, issueID int64) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	found := false
	for _, link := range s.issueMentions {
		if link.IssueID == issueID && (!found || link.DetectedAt.After(latest)) {
			latest = link.DetectedAt
			found = true
		}
	}
	return latest, found, nil
}

func (s *Store) MentionIDsForIssue(ctx context.Context, issueID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, link := range s.issueMentions {
		if link.IssueID == issueID {
			out = append(out, link.MentionID)
		}
	}
	return out, nil
}

var _ store.IssueStore = (*Store)(nil)
