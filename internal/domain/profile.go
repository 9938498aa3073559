package domain

import "time"

// Profile is a user's public-ish account record. CoinBalance, Wins, and
// Losses are owned by the settlement process; profile edits may only touch
// the display fields.
type Profile struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name"`
	Username    string    `json:"username"`
	AvatarPath  string    `json:"avatar_path,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CoinBalance int64     `json:"coin_balance"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfilePatch carries the user-editable profile fields. Nil pointers leave
// the corresponding column untouched.
type ProfilePatch struct {
	FullName *string
	Username *string
}
