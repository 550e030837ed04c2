package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tracelay/tracelay/tracing"
)

var errUserNotFound = errors.New("user not found")

// User is the demo resource.
type User struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name" binding:"required"`
}

// userStore is an in-memory store whose operations are traced with the
// operation wrapper, the way a database layer would be.
type userStore struct {
	mu    sync.RWMutex
	users map[string]User

	get    func(context.Context, string) (User, error)
	insert func(context.Context, User) (User, error)
}

func newUserStore(tracer *tracing.Tracer) *userStore {
	s := &userStore{
		users: map[string]User{
			"u1": {ID: "u1", Name: "Ada"},
			"u2": {ID: "u2", Name: "Grace"},
		},
	}

	s.get = tracing.Wrap(tracer, "db.get", s.doGet,
		tracing.WithOperation("get"),
		tracing.WithTable("users"),
	)
	s.insert = tracing.Wrap(tracer, "db.insert", s.doInsert,
		tracing.WithOperation("insert"),
		tracing.WithTable("users"),
	)
	return s
}

// Get returns the user with the given id.
func (s *userStore) Get(ctx context.Context, id string) (User, error) {
	return s.get(ctx, id)
}

// Insert stores a new user.
func (s *userStore) Insert(ctx context.Context, user User) (User, error) {
	return s.insert(ctx, user)
}

func (s *userStore) doGet(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("%w: %s", errUserNotFound, id)
	}
	return user, nil
}

func (s *userStore) doInsert(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return User{}, fmt.Errorf("user %s already exists", user.ID)
	}
	s.users[user.ID] = user
	return user, nil
}
