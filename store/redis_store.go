package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"user-network/models"
	"user-network/services"
	"user-network/utils/errors"
)

const (
	usersKey      = "users"
	versionKey    = "users:version"
	maxTxAttempts = 10
)

func userKey(id string) string           { return "user:" + id }
func friendsKey(id string) string        { return "friends:" + id }
func usernameKey(username string) string { return "username:" + username }

// userRecord is the JSON stored under user:<id>. Friends live in the
// friends:<id> set so both directions can be changed in one MULTI block.
type userRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Age       int       `json:"age"`
	Hobbies   []string  `json:"hobbies"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore keeps friendships as mirrored adjacency sets. Every write
// transaction WATCHes a shared version key and bumps it on commit, so
// conflicting transactions abort and are retried against fresh state.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStore(ctx context.Context, opts *redis.Options, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Info("Connected to Redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &RedisStore{client: client, logger: logger}, nil
}

func (s *RedisStore) WithTx(ctx context.Context, fn func(tx services.Tx) error) error {
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{reader: rtx}
			if err := fn(tx); err != nil {
				return err
			}
			if len(tx.ops) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, op := range tx.ops {
					op(ctx, pipe)
				}
				pipe.Incr(ctx, versionKey)
				return nil
			})
			return err
		}, versionKey)
		if err == redis.TxFailedErr {
			s.logger.Debug("Redis transaction conflict, retrying", zap.Int("attempt", attempt))
			continue
		}
		return err
	}
	return fmt.Errorf("transaction aborted after %d attempts: %w", maxTxAttempts, redis.TxFailedErr)
}

func (s *RedisStore) View(ctx context.Context, fn func(tx services.Tx) error) error {
	return fn(&redisTx{reader: s.client, readOnly: true})
}

func (s *RedisStore) Close(ctx context.Context) error {
	return s.client.Close()
}

// redisReader is the read surface shared by *redis.Client and *redis.Tx
type redisReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

type redisTx struct {
	reader   redisReader
	readOnly bool
	// ops are queued writes, applied inside MULTI/EXEC when fn returns
	ops []func(ctx context.Context, pipe redis.Pipeliner)
}

func (t *redisTx) queue(op func(ctx context.Context, pipe redis.Pipeliner)) error {
	if t.readOnly {
		return fmt.Errorf("write attempted in read-only transaction")
	}
	t.ops = append(t.ops, op)
	return nil
}

func (t *redisTx) FindByID(ctx context.Context, id string) (*models.User, error) {
	data, err := t.reader.Get(ctx, userKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	var record userRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %s: %w", id, err)
	}

	friends, err := t.reader.SMembers(ctx, friendsKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get friends of %s: %w", id, err)
	}
	sort.Strings(friends)

	return &models.User{
		ID:        record.ID,
		Username:  record.Username,
		Age:       record.Age,
		Hobbies:   record.Hobbies,
		Friends:   friends,
		CreatedAt: record.CreatedAt.UTC(),
	}, nil
}

func (t *redisTx) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := t.reader.Get(ctx, usernameKey(username)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up username %s: %w", username, err)
	}
	return t.FindByID(ctx, id)
}

func (t *redisTx) Insert(ctx context.Context, user *models.User) error {
	taken, err := t.reader.Exists(ctx, usernameKey(user.Username)).Result()
	if err != nil {
		return fmt.Errorf("failed to check username %s: %w", user.Username, err)
	}
	if taken > 0 {
		return errors.NewUsernameTaken(user.Username)
	}
	data, err := json.Marshal(toRecord(user))
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, userKey(user.ID), data, 0)
		pipe.Set(ctx, usernameKey(user.Username), user.ID, 0)
		pipe.SAdd(ctx, usersKey, user.ID)
	})
}

func (t *redisTx) Update(ctx context.Context, user *models.User) error {
	current, err := t.FindByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return errors.NewUserNotFound(user.ID)
	}
	if current.Username != user.Username {
		owner, err := t.reader.Get(ctx, usernameKey(user.Username)).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("failed to check username %s: %w", user.Username, err)
		}
		if err == nil && owner != user.ID {
			return errors.NewUsernameTaken(user.Username)
		}
	}

	record := toRecord(user)
	record.CreatedAt = current.CreatedAt
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	oldUsername := current.Username
	return t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, userKey(user.ID), data, 0)
		if oldUsername != user.Username {
			pipe.Del(ctx, usernameKey(oldUsername))
			pipe.Set(ctx, usernameKey(user.Username), user.ID, 0)
		}
	})
}

func (t *redisTx) Delete(ctx context.Context, id string) error {
	current, err := t.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	return t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, userKey(id), friendsKey(id), usernameKey(current.Username))
		pipe.SRem(ctx, usersKey, id)
	})
}

func (t *redisTx) All(ctx context.Context) ([]models.User, error) {
	ids, err := t.reader.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		user, err := t.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user != nil {
			users = append(users, *user)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (t *redisTx) AddFriendship(ctx context.Context, a, b string) error {
	for _, id := range []string{a, b} {
		n, err := t.reader.Exists(ctx, userKey(id)).Result()
		if err != nil {
			return fmt.Errorf("failed to check user %s: %w", id, err)
		}
		if n == 0 {
			return errors.NewUserNotFound(id)
		}
	}
	return t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SAdd(ctx, friendsKey(a), b)
		pipe.SAdd(ctx, friendsKey(b), a)
	})
}

func (t *redisTx) RemoveFriendship(ctx context.Context, a, b string) error {
	return t.queue(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SRem(ctx, friendsKey(a), b)
		pipe.SRem(ctx, friendsKey(b), a)
	})
}

func toRecord(user *models.User) userRecord {
	return userRecord{
		ID:        user.ID,
		Username:  user.Username,
		Age:       user.Age,
		Hobbies:   user.Hobbies,
		CreatedAt: user.CreatedAt,
	}
}
