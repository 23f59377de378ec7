package models

// UserClaims carries the identity claims a connection supplies on join.
// Every field is optional; the identity resolver decides what they map to.
type UserClaims struct {
	ID          *uint  `json:"id,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Name        string `json:"name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Username    string `json:"username,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
}
