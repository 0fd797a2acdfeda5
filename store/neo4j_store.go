package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"user-network/models"
	"user-network/services"
	"user-network/utils/errors"
)

const constraintViolation = "Neo.ClientError.Schema.ConstraintValidationFailed"

const userColumns = `
	u.id AS id,
	u.username AS username,
	u.age AS age,
	u.hobbies AS hobbies,
	u.created_at AS created_at,
	collect(f.id) AS friends`

// Neo4jStore keeps users as :User nodes and each friendship as a single
// :FRIENDS_WITH relationship matched without direction, so the relation is
// symmetric by construction.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

func NewNeo4jStore(ctx context.Context, uri, user, password string, logger *zap.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	logger.Info("Connected to Neo4j", zap.String("uri", uri))

	s := &Neo4jStore{driver: driver, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) ensureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
		`CREATE CONSTRAINT user_username IF NOT EXISTS FOR (u:User) REQUIRE u.username IS UNIQUE`,
	}
	for _, statement := range statements {
		if _, err := session.Run(ctx, statement, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return nil
}

// WithTx runs fn in a managed write transaction. The first statement bumps
// a shared lock node, which serializes writers: a guard read inside fn can
// not be invalidated by another writer before commit.
func (s *Neo4jStore) WithTx(ctx context.Context, fn func(tx services.Tx) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		lock := `MERGE (l:StoreLock {name: 'users'}) SET l.version = coalesce(l.version, 0) + 1`
		if _, err := tx.Run(ctx, lock, nil); err != nil {
			return nil, fmt.Errorf("failed to take store lock: %w", err)
		}
		return nil, fn(&neo4jTx{tx: tx})
	})
	return err
}

func (s *Neo4jStore) View(ctx context.Context, fn func(tx services.Tx) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(&neo4jTx{tx: tx, readOnly: true})
	})
	return err
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

type neo4jTx struct {
	tx       neo4j.ManagedTransaction
	readOnly bool
}

func (t *neo4jTx) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		MATCH (u:User {id: $id})
		OPTIONAL MATCH (u)-[:FRIENDS_WITH]-(f:User)
		RETURN` + userColumns
	return t.findOne(ctx, query, map[string]any{"id": id})
}

func (t *neo4jTx) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		MATCH (u:User {username: $username})
		OPTIONAL MATCH (u)-[:FRIENDS_WITH]-(f:User)
		RETURN` + userColumns
	return t.findOne(ctx, query, map[string]any{"username": username})
}

func (t *neo4jTx) findOne(ctx context.Context, query string, params map[string]any) (*models.User, error) {
	users, err := t.query(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (t *neo4jTx) query(ctx context.Context, query string, params map[string]any) ([]models.User, error) {
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	users := make([]models.User, 0, len(records))
	for _, record := range records {
		users = append(users, recordToUser(record))
	}
	return users, nil
}

func (t *neo4jTx) Insert(ctx context.Context, user *models.User) error {
	if t.readOnly {
		return fmt.Errorf("write attempted in read-only transaction")
	}
	query := `
		CREATE (u:User {
			id: $id,
			username: $username,
			age: $age,
			hobbies: $hobbies,
			created_at: $created_at
		})`
	result, err := t.tx.Run(ctx, query, map[string]any{
		"id":         user.ID,
		"username":   user.Username,
		"age":        user.Age,
		"hobbies":    user.Hobbies,
		"created_at": user.CreatedAt,
	})
	if err == nil {
		// Constraint failures may only surface once the result is consumed
		_, err = result.Consume(ctx)
	}
	if isConstraintViolation(err, "username") {
		return errors.NewUsernameTaken(user.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (t *neo4jTx) Update(ctx context.Context, user *models.User) error {
	if t.readOnly {
		return fmt.Errorf("write attempted in read-only transaction")
	}
	query := `
		MATCH (u:User {id: $id})
		SET u.username = $username, u.age = $age, u.hobbies = $hobbies
		RETURN count(u) AS matched`
	matched, err := t.count(ctx, query, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"age":      user.Age,
		"hobbies":  user.Hobbies,
	})
	if isConstraintViolation(err, "username") {
		return errors.NewUsernameTaken(user.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if matched == 0 {
		return errors.NewUserNotFound(user.ID)
	}
	return nil
}

func (t *neo4jTx) Delete(ctx context.Context, id string) error {
	if t.readOnly {
		return fmt.Errorf("write attempted in read-only transaction")
	}
	if _, err := t.tx.Run(ctx, `MATCH (u:User {id: $id}) DETACH DELETE u`, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (t *neo4jTx) All(ctx context.Context) ([]models.User, error) {
	query := `
		MATCH (u:User)
		OPTIONAL MATCH (u)-[:FRIENDS_WITH]-(f:User)
		RETURN` + userColumns + `
		ORDER BY created_at, id`
	return t.query(ctx, query, nil)
}

func (t *neo4jTx) AddFriendship(ctx context.Context, a, b string) error {
	if t.readOnly {
		return fmt.Errorf("write attempted in read-only transaction")
	}
	query := `
		MATCH (a:User {id: $a}), (b:User {id: $b})
		MERGE (a)-[:FRIENDS_WITH]-(b)
		RETURN count(a) AS matched`
	matched, err := t.count(ctx, query, map[string]any{"a": a, "b": b})
	if err != nil {
		return fmt.Errorf("failed to link users: %w", err)
	}
	if matched == 0 {
		return errors.NewUserNotFound(a + " or " + b)
	}
	return nil
}

func (t *neo4jTx) RemoveFriendship(ctx context.Context, a, b string) error {
	if t.readOnly {
		return fmt.Errorf("write attempted in read-only transaction")
	}
	query := `MATCH (:User {id: $a})-[r:FRIENDS_WITH]-(:User {id: $b}) DELETE r`
	if _, err := t.tx.Run(ctx, query, map[string]any{"a": a, "b": b}); err != nil {
		return fmt.Errorf("failed to unlink users: %w", err)
	}
	return nil
}

func (t *neo4jTx) count(ctx context.Context, query string, params map[string]any) (int64, error) {
	result, err := t.tx.Run(ctx, query, params)
	if err != nil {
		return 0, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, err
	}
	matched, _, err := neo4j.GetRecordValue[int64](record, "matched")
	return matched, err
}

func recordToUser(record *neo4j.Record) models.User {
	user := models.User{
		ID:       getString(record, "id"),
		Username: getString(record, "username"),
		Hobbies:  getStrings(record, "hobbies"),
		Friends:  getStrings(record, "friends"),
	}
	if age, ok := record.Get("age"); ok {
		if v, ok := age.(int64); ok {
			user.Age = int(v)
		}
	}
	if createdAt, ok := record.Get("created_at"); ok {
		if v, ok := createdAt.(time.Time); ok {
			user.CreatedAt = v.UTC()
		}
	}
	sort.Strings(user.Friends)
	return user
}

func getString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	s, _ := val.(string)
	return s
}

func getStrings(record *neo4j.Record, key string) []string {
	out := []string{}
	val, ok := record.Get(key)
	if !ok || val == nil {
		return out
	}
	items, ok := val.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// isConstraintViolation reports whether err is a uniqueness failure on the
// given :User property. The server names the property in backticks.
func isConstraintViolation(err error, property string) bool {
	var neoErr *neo4j.Neo4jError
	if !stderrors.As(err, &neoErr) || neoErr.Code != constraintViolation {
		return false
	}
	return strings.Contains(neoErr.Msg, "`"+property+"`")
}
