package users

import "time"

const (
	collection = "users"

	DefaultMode     = "none"
	DefaultAvatarID = "avatar-1"
)

// Avatar is one entry of the fixed avatar catalog.
type Avatar struct {
	ID    string `json:"id"`
	Emoji string `json:"emoji"`
	Name  string `json:"name"`
}

// Avatars is the catalog a user picks avatarId from.
var Avatars = []Avatar{
	{ID: "avatar-1", Emoji: "🌙", Name: "Moon"},
	{ID: "avatar-2", Emoji: "🌟", Name: "Star"},
	{ID: "avatar-3", Emoji: "🌊", Name: "Wave"},
	{ID: "avatar-4", Emoji: "🌸", Name: "Blossom"},
	{ID: "avatar-5", Emoji: "🍃", Name: "Leaf"},
	{ID: "avatar-6", Emoji: "🦋", Name: "Butterfly"},
	{ID: "avatar-7", Emoji: "🕊️", Name: "Dove"},
	{ID: "avatar-8", Emoji: "🌿", Name: "Sage"},
}

// AvatarByID returns the catalog entry for id, falling back to the default avatar.
func AvatarByID(id string) Avatar {
	for _, a := range Avatars {
		if a.ID == id {
			return a
		}
	}
	return Avatars[0]
}

// record is the stored users document.
type record struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          *string   `json:"name"`
	PreferredMode string    `json:"preferredMode"`
	AvatarID      string    `json:"avatarId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Profile is the response of /api/me and /api/me/preferences.
type Profile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          *string    `json:"name"`
	PreferredMode string     `json:"preferredMode"`
	AvatarID      string     `json:"avatarId"`
	CreatedAt     *time.Time `json:"createdAt"`
}

// UpdatePreferencesRequest is the body of PATCH /api/me/preferences.
type UpdatePreferencesRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=100"`
	PreferredMode *string `json:"preferredMode" binding:"omitempty,oneof=gita quran bible none"`
	AvatarID      *string `json:"avatarId" binding:"omitempty,oneof=avatar-1 avatar-2 avatar-3 avatar-4 avatar-5 avatar-6 avatar-7 avatar-8"`
}

func (r *UpdatePreferencesRequest) fields() map[string]interface{} {
	f := map[string]interface{}{}
	if r.Name != nil {
		f["name"] = *r.Name
	}
	if r.PreferredMode != nil {
		f["preferredMode"] = *r.PreferredMode
	}
	if r.AvatarID != nil {
		f["avatarId"] = *r.AvatarID
	}
	return f
}
