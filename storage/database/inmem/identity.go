package inmemdb

import (
	"context"

	"github.com/mystudenthub/backend/core/user"
)

type identityStore struct {
	db *DB
}

var _ user.IdentityStore = (*identityStore)(nil)

func NewIdentityStore(db *DB) user.IdentityStore {
	return &identityStore{db: db}
}

func (s *identityStore) InsertIdentity(_ context.Context, idt user.Identity) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, other := range s.db.identities {
		if other.Email == idt.Email {
			return user.ErrEmailExists
		}
	}
	s.db.identities[idt.UID] = &idt
	return nil
}

func (s *identityStore) DeleteIdentity(_ context.Context, uid string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.identities, uid)
	return nil
}

func (s *identityStore) GetIdentity(_ context.Context, uid string) (user.Identity, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	if idt, ok := s.db.identities[uid]; ok {
		return *idt, nil
	}
	return user.Identity{}, user.ErrIdentityNotFound
}

func (s *identityStore) GetIdentityByEmail(_ context.Context, email string) (user.Identity, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, idt := range s.db.identities {
		if idt.Email == email {
			return *idt, nil
		}
	}
	return user.Identity{}, user.ErrIdentityNotFound
}

func (s *identityStore) UpdateIdentity(_ context.Context, idt user.Identity) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.identities[idt.UID]; !ok {
		return user.ErrIdentityNotFound
	}
	for uid, other := range s.db.identities {
		if uid != idt.UID && other.Email == idt.Email {
			return user.ErrEmailExists
		}
	}
	s.db.identities[idt.UID] = &idt
	return nil
}
