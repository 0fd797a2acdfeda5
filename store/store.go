// Package store holds the persistence backends for users and friendships.
// Each backend implements services.Store and keeps the friendship relation
// symmetric inside its own transaction.
package store

import (
	"slices"

	"user-network/models"
)

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Hobbies = slices.Clone(u.Hobbies)
	c.Friends = slices.Clone(u.Friends)
	if c.Friends == nil {
		c.Friends = []string{}
	}
	return &c
}

func addFriend(friends []string, id string) []string {
	if slices.Contains(friends, id) {
		return friends
	}
	return append(friends, id)
}

func removeFriend(friends []string, id string) []string {
	return slices.DeleteFunc(friends, func(f string) bool { return f == id })
}
