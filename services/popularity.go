package services

import (
	"math"

	"user-network/models"
)

// sharedHobbyWeight is what each hobby shared with a friend adds to the score
const sharedHobbyWeight = 0.5

// PopularityScore computes |friends| + 0.5 * sum of shared hobbies with each
// friend, rounded to two decimals. Hobbies are compared as sets, so a hobby
// listed twice counts once. Friend ids missing from byID still count towards
// the friend total but contribute no shared hobbies.
func PopularityScore(user *models.User, byID map[string]*models.User) float64 {
	if len(user.Friends) == 0 {
		return 0
	}
	hobbies := hobbySet(user.Hobbies)

	shared := 0
	for _, friendID := range user.Friends {
		friend, ok := byID[friendID]
		if !ok {
			continue
		}
		for hobby := range hobbySet(friend.Hobbies) {
			if _, ok := hobbies[hobby]; ok {
				shared++
			}
		}
	}

	score := float64(len(user.Friends)) + float64(shared)*sharedHobbyWeight
	return roundScore(score)
}

func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

func hobbySet(hobbies []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hobbies))
	for _, hobby := range hobbies {
		set[hobby] = struct{}{}
	}
	return set
}

// indexUsers keys users by id for score lookups
func indexUsers(users []models.User) map[string]*models.User {
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	return byID
}
