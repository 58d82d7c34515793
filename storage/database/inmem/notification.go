package inmemdb

import (
	"context"
	"sort"

	"github.com/mystudenthub/backend/core/notification"
)

type pushTokenRepository struct {
	db *DB
}

var _ notification.TokenRepository = (*pushTokenRepository)(nil)

func NewPushTokenRepository(db *DB) notification.TokenRepository {
	return &pushTokenRepository{db: db}
}

func (repo *pushTokenRepository) SaveToken(_ context.Context, tok notification.Token) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.tokens[tok.Token] = &tok
	return nil
}

func (repo *pushTokenRepository) DeleteToken(_ context.Context, token string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	delete(repo.db.tokens, token)
	return nil
}

func (repo *pushTokenRepository) TokensForUsers(_ context.Context, uids []string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	wanted := make(map[string]bool, len(uids))
	for _, uid := range uids {
		wanted[uid] = true
	}
	var tokens []string
	for token, tok := range repo.db.tokens {
		if wanted[tok.UID] {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return tokens, nil
}

func (repo *pushTokenRepository) AllTokens(_ context.Context) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	tokens := make([]string, 0, len(repo.db.tokens))
	for token := range repo.db.tokens {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens, nil
}
