package user

import "greenTrackAPI/internal/community"

type SignInRequest struct {
	Name     string                `json:"name"`
	Email    string                `json:"email"`
	PhotoURL string                `json:"photoUrl,omitempty"`
	Location *community.Coordinate `json:"location,omitempty"`
}

type UpdateLocationRequest struct {
	Location *community.Coordinate `json:"location,omitempty"`
}

// Profile is the sign-in identity handed to the membership service.
type Profile struct {
	ID       string
	Name     string
	Email    string
	PhotoURL string
}
