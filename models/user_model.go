package models

import "time"

// User is the persisted profile record. Friends holds the ids of every user
// this one is linked to; the relation is always mirrored on the other side.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Username  string    `json:"username" bson:"username"`
	Age       int       `json:"age" bson:"age"`
	Hobbies   []string  `json:"hobbies" bson:"hobbies"`
	Friends   []string  `json:"friends" bson:"friends"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// HasFriend reports whether id is in the user's friend list
func (u *User) HasFriend(id string) bool {
	for _, friendID := range u.Friends {
		if friendID == id {
			return true
		}
	}
	return false
}

// UserView is a user as returned to callers, with the derived score inlined
type UserView struct {
	User
	PopularityScore float64 `json:"popularity_score"`
}

// UserInput carries the fields required to create a user
type UserInput struct {
	Username string   `json:"username" validate:"required,min=1,max=50,username"`
	Age      int      `json:"age" validate:"gt=0,lt=150"`
	Hobbies  []string `json:"hobbies" validate:"required,min=1,dive,required"`
}

// UserPatch carries a partial update; nil fields are left untouched
type UserPatch struct {
	Username *string  `json:"username,omitempty" validate:"omitempty,min=1,max=50,username"`
	Age      *int     `json:"age,omitempty" validate:"omitempty,gt=0,lt=150"`
	Hobbies  []string `json:"hobbies,omitempty" validate:"omitempty,dive,required"`
}

// LinkRequest is the body of link and unlink calls
type LinkRequest struct {
	FriendID string `json:"friend_id"`
}
