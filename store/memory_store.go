package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"user-network/models"
	"user-network/services"
	"user-network/utils/errors"
)

// MemoryStore keeps users in process. Write transactions are serialized by a
// mutex and work on a copy that replaces the live state only on success.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*models.User)}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx services.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := make(map[string]*models.User, len(s.users))
	for id, u := range s.users {
		working[id] = cloneUser(u)
	}
	if err := fn(&memoryTx{users: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.users = working
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx services.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memoryTx{users: s.users, readOnly: true})
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

type memoryTx struct {
	users    map[string]*models.User
	readOnly bool
}

func (t *memoryTx) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := t.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (t *memoryTx) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range t.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (t *memoryTx) Insert(ctx context.Context, user *models.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.users[user.ID]; ok {
		return fmt.Errorf("user %s already stored", user.ID)
	}
	for _, u := range t.users {
		if u.Username == user.Username {
			return errors.NewUsernameTaken(user.Username)
		}
	}
	t.users[user.ID] = cloneUser(user)
	return nil
}

func (t *memoryTx) Update(ctx context.Context, user *models.User) error {
	if err := t.writable(); err != nil {
		return err
	}
	current, ok := t.users[user.ID]
	if !ok {
		return errors.NewUserNotFound(user.ID)
	}
	for id, u := range t.users {
		if id != user.ID && u.Username == user.Username {
			return errors.NewUsernameTaken(user.Username)
		}
	}
	updated := cloneUser(user)
	updated.Friends = current.Friends
	updated.CreatedAt = current.CreatedAt
	t.users[user.ID] = updated
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, id string) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.users, id)
	return nil
}

func (t *memoryTx) All(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(t.users))
	for _, u := range t.users {
		users = append(users, *cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (t *memoryTx) AddFriendship(ctx context.Context, a, b string) error {
	if err := t.writable(); err != nil {
		return err
	}
	ua, okA := t.users[a]
	ub, okB := t.users[b]
	if !okA {
		return errors.NewUserNotFound(a)
	}
	if !okB {
		return errors.NewUserNotFound(b)
	}
	ua.Friends = addFriend(ua.Friends, b)
	ub.Friends = addFriend(ub.Friends, a)
	return nil
}

func (t *memoryTx) RemoveFriendship(ctx context.Context, a, b string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if ua, ok := t.users[a]; ok {
		ua.Friends = removeFriend(ua.Friends, b)
	}
	if ub, ok := t.users[b]; ok {
		ub.Friends = removeFriend(ub.Friends, a)
	}
	return nil
}

func (t *memoryTx) writable() error {
	if t.readOnly {
		return fmt.Errorf("write attempted in read-only transaction")
	}
	return nil
}
