// Package prefs keeps small pieces of per-user client state on top of an
// injected kvstore.Store.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ecoshare/internal/kvstore"
)

const defaultRecentLimit = 5

// RecentSearches remembers the latest distinct search terms, newest first.
type RecentSearches struct {
	store kvstore.Store
	limit int
}

func NewRecentSearches(store kvstore.Store, limit int) *RecentSearches {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return &RecentSearches{store: store, limit: limit}
}

func recentKey(userID string) string {
	return "recent_searches:" + userID
}

func (r *RecentSearches) List(ctx context.Context, userID string) ([]string, error) {
	raw, err := r.store.Get(ctx, recentKey(userID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var terms []string
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		return nil, fmt.Errorf("decode recent searches: %w", err)
	}
	return terms, nil
}

// Add records term as the most recent search. Blank terms are ignored and a
// term matching an older one case-insensitively replaces it.
func (r *RecentSearches) Add(ctx context.Context, userID, term string) ([]string, error) {
	term = strings.TrimSpace(term)
	terms, err := r.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if term == "" {
		return terms, nil
	}

	out := make([]string, 0, r.limit)
	out = append(out, term)
	for _, t := range terms {
		if len(out) == r.limit {
			break
		}
		if strings.EqualFold(t, term) {
			continue
		}
		out = append(out, t)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, recentKey(userID), string(data)); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RecentSearches) Clear(ctx context.Context, userID string) error {
	return r.store.Delete(ctx, recentKey(userID))
}
