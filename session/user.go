package session

// User is the identity snapshot returned by the login endpoint.
// Field names on the wire follow the backend (prenom/nom).
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"prenom,omitempty"`
	LastName  string `json:"nom,omitempty"`
	Role      string `json:"role,omitempty"`
}

// DisplayName returns "FirstName LastName", falling back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}
