package models

// Profile is the user profile shown on the edit-profile page.
type Profile struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ProfileForm holds the editable profile fields as typed by the user.
type ProfileForm struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
}
