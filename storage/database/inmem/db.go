// Package inmemdb keeps every collection in process memory. Used in development and tests.
package inmemdb

import (
	"sync"

	"github.com/mystudenthub/backend/core/circle"
	"github.com/mystudenthub/backend/core/material"
	"github.com/mystudenthub/backend/core/notification"
	"github.com/mystudenthub/backend/core/user"
)

// DB guards every table with one lock, so a batch is applied all at once or not at all.
type DB struct {
	mu         sync.RWMutex
	identities map[string]*user.Identity
	users      map[string]*user.User
	profiles   map[string]map[string]*user.ProfileRecord // collection -> uid -> record
	materials  map[string]*material.Material
	circles    map[string]*circle.Circle
	tokens     map[string]*notification.Token

	failNext error
}

func NewDB() *DB {
	return &DB{
		identities: make(map[string]*user.Identity),
		users:      make(map[string]*user.User),
		profiles: map[string]map[string]*user.ProfileRecord{
			user.CollectionTeachers: make(map[string]*user.ProfileRecord),
			user.CollectionStudents: make(map[string]*user.ProfileRecord),
		},
		materials: make(map[string]*material.Material),
		circles:   make(map[string]*circle.Circle),
		tokens:    make(map[string]*notification.Token),
	}
}

// FailNextCommit makes the next provisioning commit fail with err without writing anything.
func (db *DB) FailNextCommit(err error) {
	db.mu.Lock()
	db.failNext = err
	db.mu.Unlock()
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := NewDB()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.identities = fresh.identities
	db.users = fresh.users
	db.profiles = fresh.profiles
	db.materials = fresh.materials
	db.circles = fresh.circles
	db.tokens = fresh.tokens
	db.failNext = nil
}
