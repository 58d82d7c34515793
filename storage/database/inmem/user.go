package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// CommitProvisioning overwrites the User Record and merges the Profile Record: existing attrs not set
// by the batch are kept.
func (repo *userRepository) CommitProvisioning(ctx context.Context, batch user.Batch) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.failNext; err != nil {
		repo.db.failNext = nil
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var merged *user.ProfileRecord
	var table map[string]*user.ProfileRecord
	if p := batch.Profile; p != nil {
		var ok bool
		if table, ok = repo.db.profiles[p.Collection()]; !ok {
			return user.ErrProfileNotFound
		}
		merged = mergeProfile(table[p.UID], *p)
	}

	usr := batch.User
	repo.db.users[usr.UID] = &usr
	if merged != nil {
		table[merged.UID] = merged
	}
	return nil
}

func mergeProfile(existing *user.ProfileRecord, p user.ProfileRecord) *user.ProfileRecord {
	attrs := make(map[string]interface{}, len(p.Attrs))
	if existing != nil {
		for k, v := range existing.Attrs {
			attrs[k] = v
		}
	}
	for k, v := range p.Attrs {
		attrs[k] = v
	}
	p.Attrs = attrs
	return &p
}

func (repo *userRepository) GetUser(_ context.Context, uid string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if usr, ok := repo.db.users[uid]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetProfile(_ context.Context, role user.Role, uid string) (user.ProfileRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	table, ok := repo.db.profiles[role.ProfileCollection()]
	if !ok {
		return user.ProfileRecord{}, user.ErrProfileNotFound
	}
	p, ok := table[uid]
	if !ok {
		return user.ProfileRecord{}, user.ErrProfileNotFound
	}
	out := *p
	out.Attrs = make(map[string]interface{}, len(p.Attrs))
	for k, v := range p.Attrs {
		out.Attrs[k] = v
	}
	return out, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if search != "" && !strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			continue
		}
		if filter.Role != "" && usr.Role != filter.Role {
			continue
		}
		if filter.Status != "" && usr.Status != filter.Status {
			continue
		}
		users = append(users, *usr)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].UID < users[j].UID
	})
	return users, nil
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "role":
		return strings.Compare(string(a.Role), string(b.Role))
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return 0
}

func (repo *userRepository) SetUserStatus(_ context.Context, uid string, status user.Status) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	usr, ok := repo.db.users[uid]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.Status = status
	return *usr, nil
}

func (repo *userRepository) CountUsersByRole(_ context.Context) (map[user.Role]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	counts := make(map[user.Role]int, len(user.Roles))
	for _, r := range user.Roles {
		counts[r] = 0
	}
	for _, usr := range repo.db.users {
		counts[usr.Role]++
	}
	return counts, nil
}

func (repo *userRepository) StudentUIDsByCircle(_ context.Context, circleID string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	var uids []string
	for uid, p := range repo.db.profiles[user.CollectionStudents] {
		if p.CircleID() == circleID {
			uids = append(uids, uid)
		}
	}
	sort.Strings(uids)
	return uids, nil
}
