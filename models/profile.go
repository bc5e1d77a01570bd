package models

// Profile is the public record a user keeps next to their conversations.
type Profile struct {
	UserID   string `json:"userId"`
	Username string `json:"username" validate:"required,max=64"`
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
}

// ProfilePath is the tree location of a user's profile.
func ProfilePath(userID string) string {
	return "users/" + userID
}

func (p Profile) Validate() error {
	return validate.Struct(p)
}
