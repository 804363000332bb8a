package auth

// Session identifies one cart owner. Guests carry only a device-generated id;
// authenticated visitors additionally carry their user id and bearer token for
// remote cart calls.
type Session struct {
	ID     string
	UserID string
	Token  string
}

// Authenticated reports whether the session belongs to a logged-in user.
func (s Session) Authenticated() bool {
	return s.UserID != "" && s.Token != ""
}

// Key returns the stable identifier the engine registry binds state to.
func (s Session) Key() string {
	if s.Authenticated() {
		return "user:" + s.UserID
	}
	return "guest:" + s.ID
}
