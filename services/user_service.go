package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"user-network/models"
	"user-network/utils/errors"
	"user-network/utils/metrics"
)

// UserService implements user lifecycle, friendship links and the derived
// popularity and graph views on top of a Store.
type UserService struct {
	store     Store
	validator *Validator
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewUserService(store Store, logger *zap.Logger) *UserService {
	return &UserService{
		store:     store,
		validator: NewValidator(),
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// ListUsers returns every user with friend ids resolved and scores computed
func (s *UserService) ListUsers(ctx context.Context) ([]models.UserView, error) {
	var views []models.UserView
	err := s.store.View(ctx, func(tx Tx) error {
		users, err := tx.All(ctx)
		if err != nil {
			return err
		}
		byID := indexUsers(users)
		views = make([]models.UserView, 0, len(users))
		for i := range users {
			views = append(views, newView(&users[i], byID))
		}
		return nil
	})
	if err != nil {
		return nil, s.finish("list_users", err)
	}
	return views, s.finish("list_users", nil)
}

// GetUser returns a single user by id
func (s *UserService) GetUser(ctx context.Context, userID string) (models.UserView, error) {
	var view models.UserView
	err := s.store.View(ctx, func(tx Tx) error {
		user, err := mustFind(ctx, tx, userID)
		if err != nil {
			return err
		}
		view, err = s.scoredView(ctx, tx, user)
		return err
	})
	if err != nil {
		return models.UserView{}, s.finish("get_user", err)
	}
	return view, s.finish("get_user", nil)
}

// GetFriends returns the resolved friends of a user, each with its own score
func (s *UserService) GetFriends(ctx context.Context, userID string) ([]models.UserView, error) {
	var views []models.UserView
	err := s.store.View(ctx, func(tx Tx) error {
		users, err := tx.All(ctx)
		if err != nil {
			return err
		}
		byID := indexUsers(users)
		user, ok := byID[userID]
		if !ok {
			return errors.NewUserNotFound(userID)
		}
		views = make([]models.UserView, 0, len(user.Friends))
		for _, friendID := range user.Friends {
			if friend, ok := byID[friendID]; ok {
				views = append(views, newView(friend, byID))
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.finish("get_friends", err)
	}
	return views, s.finish("get_friends", nil)
}

// CreateUser validates input and persists a new user with no friends
func (s *UserService) CreateUser(ctx context.Context, input models.UserInput) (models.UserView, error) {
	if err := s.validator.ValidateInput(input); err != nil {
		return models.UserView{}, s.finish("create_user", err)
	}

	user := models.User{
		ID:        s.newID(),
		Username:  input.Username,
		Age:       input.Age,
		Hobbies:   append([]string(nil), input.Hobbies...),
		Friends:   []string{},
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.FindByUsername(ctx, user.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.NewUsernameTaken(user.Username)
		}
		return tx.Insert(ctx, &user)
	})
	if err != nil {
		return models.UserView{}, s.finish("create_user", err)
	}

	s.logger.Info("Created user", zap.String("user_id", user.ID), zap.String("username", user.Username))
	// No friends yet, so the score is known without another read
	return models.UserView{User: user, PopularityScore: 0}, s.finish("create_user", nil)
}

// UpdateUser applies the supplied fields of patch. A username change is
// checked for uniqueness against every other user.
func (s *UserService) UpdateUser(ctx context.Context, userID string, patch models.UserPatch) (models.UserView, error) {
	if err := s.validator.ValidatePatch(patch); err != nil {
		return models.UserView{}, s.finish("update_user", err)
	}

	var view models.UserView
	err := s.store.WithTx(ctx, func(tx Tx) error {
		user, err := mustFind(ctx, tx, userID)
		if err != nil {
			return err
		}

		if patch.Username != nil && *patch.Username != user.Username {
			existing, err := tx.FindByUsername(ctx, *patch.Username)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != user.ID {
				return errors.NewUsernameTaken(*patch.Username)
			}
			user.Username = *patch.Username
		}
		if patch.Age != nil {
			user.Age = *patch.Age
		}
		if patch.Hobbies != nil {
			user.Hobbies = append([]string(nil), patch.Hobbies...)
		}

		if err := tx.Update(ctx, user); err != nil {
			return err
		}
		view, err = s.scoredView(ctx, tx, user)
		return err
	})
	if err != nil {
		return models.UserView{}, s.finish("update_user", err)
	}

	s.logger.Info("Updated user", zap.String("user_id", userID))
	return view, s.finish("update_user", nil)
}

// DeleteUser removes a user that has no friendships left
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		user, err := mustFind(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(user.Friends) > 0 {
			return errors.ErrFriendshipsExist
		}
		return tx.Delete(ctx, userID)
	})
	if err != nil {
		return s.finish("delete_user", err)
	}

	s.logger.Info("Deleted user", zap.String("user_id", userID))
	return s.finish("delete_user", nil)
}

// LinkUsers makes two users friends of each other
func (s *UserService) LinkUsers(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return s.finish("link_users", errors.ErrSelfLink)
	}

	err := s.store.WithTx(ctx, func(tx Tx) error {
		user, err := mustFind(ctx, tx, userID)
		if err != nil {
			return err
		}
		friend, err := mustFind(ctx, tx, friendID)
		if err != nil {
			return err
		}
		if user.HasFriend(friendID) || friend.HasFriend(userID) {
			return errors.ErrRelationshipExists
		}
		return tx.AddFriendship(ctx, userID, friendID)
	})
	if err != nil {
		return s.finish("link_users", err)
	}

	s.logger.Info("Linked users", zap.String("user_id", userID), zap.String("friend_id", friendID))
	return s.finish("link_users", nil)
}

// UnlinkUsers removes the friendship between two users if there is one.
// Both users must exist.
func (s *UserService) UnlinkUsers(ctx context.Context, userID, friendID string) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := mustFind(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := mustFind(ctx, tx, friendID); err != nil {
			return err
		}
		return tx.RemoveFriendship(ctx, userID, friendID)
	})
	if err != nil {
		return s.finish("unlink_users", err)
	}

	s.logger.Info("Unlinked users", zap.String("user_id", userID), zap.String("friend_id", friendID))
	return s.finish("unlink_users", nil)
}

// GetGraph returns the node/edge snapshot of the whole network
func (s *UserService) GetGraph(ctx context.Context) (models.Graph, error) {
	var graph models.Graph
	err := s.store.View(ctx, func(tx Tx) error {
		users, err := tx.All(ctx)
		if err != nil {
			return err
		}
		graph = BuildGraph(users)
		return nil
	})
	if err != nil {
		return models.Graph{}, s.finish("get_graph", err)
	}
	return graph, s.finish("get_graph", nil)
}

// scoredView loads the user's friends to compute its score
func (s *UserService) scoredView(ctx context.Context, tx Tx, user *models.User) (models.UserView, error) {
	byID := make(map[string]*models.User, len(user.Friends))
	for _, friendID := range user.Friends {
		friend, err := tx.FindByID(ctx, friendID)
		if err != nil {
			return models.UserView{}, err
		}
		if friend != nil {
			byID[friendID] = friend
		}
	}
	return newView(user, byID), nil
}

// finish counts the operation outcome and logs failures that are not caused
// by caller input.
func (s *UserService) finish(operation string, err error) error {
	outcome := "ok"
	if err != nil {
		kind := errors.KindOf(err)
		outcome = string(kind)
		if kind == errors.KindInternal {
			s.logger.Error("Operation failed", zap.String("operation", operation), zap.Error(err))
		}
	}
	metrics.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	return err
}

func mustFind(ctx context.Context, tx Tx, userID string) (*models.User, error) {
	user, err := tx.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewUserNotFound(userID)
	}
	return user, nil
}

func newView(user *models.User, byID map[string]*models.User) models.UserView {
	view := models.UserView{User: *user, PopularityScore: PopularityScore(user, byID)}
	if view.Friends == nil {
		view.Friends = []string{}
	}
	return view
}
