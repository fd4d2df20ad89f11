package domain

import "errors"

var (
	// ErrProfileNotFound is returned when no profile document exists for an identity.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNoDisplayName is returned when a profile update carries an empty display name.
	ErrNoDisplayName = errors.New("no display name")
)

// ProfileCollection is the document collection holding user profiles.
const ProfileCollection = "profiles"

// Profile holds user-facing account details kept alongside the inventory.
type Profile struct {
	ID          string `json:"-"`
	DisplayName string `json:"name"`
}

// NewProfileFromDocument decodes a stored profile document.
func NewProfileFromDocument(doc Document) (Profile, error) {
	var profile Profile
	if err := doc.Decode(&profile); err != nil {
		return Profile{}, err
	}

	profile.ID = doc.ID.String()

	return profile, nil
}

// ProfileResponse is the wire representation of a profile.
type ProfileResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewProfileResponse converts a profile for encoding.
func NewProfileResponse(profile Profile) ProfileResponse {
	return ProfileResponse{ID: profile.ID, DisplayName: profile.DisplayName}
}
