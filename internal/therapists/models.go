package therapists

import "time"

const (
	collection = "therapists"

	listCacheKey = "therapists:list"
	listCacheTTL = 2 * time.Minute
	itemCacheTTL = 5 * time.Minute

	uploadURLTTL = 15 * time.Minute
)

func itemCacheKey(id string) string { return "therapists:id:" + id }

// Therapist is a stored directory entry.
type Therapist struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Bio          string    `json:"bio"`
	Credentials  []string  `json:"credentials"`
	Specialties  []string  `json:"specialties"`
	Approach     string    `json:"approach"`
	Languages    []string  `json:"languages"`
	ProfileImage *string   `json:"profileImage"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is a therapist as shown in the public directory. isActive is implied.
type Profile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Bio          string    `json:"bio"`
	Credentials  []string  `json:"credentials"`
	Specialties  []string  `json:"specialties"`
	Approach     string    `json:"approach"`
	Languages    []string  `json:"languages"`
	ProfileImage *string   `json:"profileImage"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (t *Therapist) Profile() Profile {
	return Profile{
		ID:           t.ID,
		Name:         t.Name,
		Bio:          t.Bio,
		Credentials:  nonNil(t.Credentials),
		Specialties:  nonNil(t.Specialties),
		Approach:     t.Approach,
		Languages:    nonNil(t.Languages),
		ProfileImage: t.ProfileImage,
		CreatedAt:    t.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// CreateTherapistRequest is the body of POST /api/therapists.
type CreateTherapistRequest struct {
	Name         string   `json:"name" binding:"required,min=1,max=200"`
	Bio          string   `json:"bio" binding:"required,min=10,max=2000"`
	Credentials  []string `json:"credentials" binding:"required,min=1,dive,min=1,max=100"`
	Specialties  []string `json:"specialties" binding:"required,min=1,dive,min=1,max=100"`
	Approach     string   `json:"approach" binding:"required,min=10,max=1000"`
	Languages    []string `json:"languages" binding:"required,min=1,dive,min=1,max=50"`
	ProfileImage *string  `json:"profileImage" binding:"omitempty,url"`
	IsActive     *bool    `json:"isActive"`
}

// UpdateTherapistRequest is the body of PATCH /api/therapists/:id. Absent fields are
// left untouched.
type UpdateTherapistRequest struct {
	Name         *string   `json:"name" binding:"omitempty,min=1,max=200"`
	Bio          *string   `json:"bio" binding:"omitempty,min=10,max=2000"`
	Credentials  *[]string `json:"credentials" binding:"omitempty,min=1,dive,min=1,max=100"`
	Specialties  *[]string `json:"specialties" binding:"omitempty,min=1,dive,min=1,max=100"`
	Approach     *string   `json:"approach" binding:"omitempty,min=10,max=1000"`
	Languages    *[]string `json:"languages" binding:"omitempty,min=1,dive,min=1,max=50"`
	ProfileImage *string   `json:"profileImage" binding:"omitempty,url"`
	IsActive     *bool     `json:"isActive"`
}

// Fields returns the set fields as a document patch.
func (r *UpdateTherapistRequest) Fields() map[string]interface{} {
	f := map[string]interface{}{}
	if r.Name != nil {
		f["name"] = *r.Name
	}
	if r.Bio != nil {
		f["bio"] = *r.Bio
	}
	if r.Credentials != nil {
		f["credentials"] = *r.Credentials
	}
	if r.Specialties != nil {
		f["specialties"] = *r.Specialties
	}
	if r.Approach != nil {
		f["approach"] = *r.Approach
	}
	if r.Languages != nil {
		f["languages"] = *r.Languages
	}
	if r.ProfileImage != nil {
		f["profileImage"] = *r.ProfileImage
	}
	if r.IsActive != nil {
		f["isActive"] = *r.IsActive
	}
	return f
}

// ImageUploadRequest is the body of POST /api/therapists/:id/image-upload-url.
type ImageUploadRequest struct {
	ContentType string `json:"contentType" binding:"required,oneof=image/jpeg image/png image/webp image/gif"`
}

// ImageUploadResponse tells the caller where to PUT the image and which URL to store
// as profileImage afterwards.
type ImageUploadResponse struct {
	UploadURL    string    `json:"uploadUrl"`
	Key          string    `json:"key"`
	ProfileImage string    `json:"profileImage"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
