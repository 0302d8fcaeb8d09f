package mapory

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password too short")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidLocation    = errors.New("invalid location")
	ErrWrongPassphrase    = errors.New("wrong passphrase")
)

// UserMessage returns the sentence shown to a user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmailInUse):
		return "This email is already in use."
	case errors.Is(err, ErrWeakPassword):
		return "Password must be at least 6 characters long."
	case errors.Is(err, ErrInvalidEmail):
		return "Please enter a valid email address."
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password."
	case errors.Is(err, ErrWrongPassphrase):
		return "Wrong passphrase."
	case errors.Is(err, ErrNotSignedIn):
		return "You are not signed in. Run `mapory login` first."
	default:
		return err.Error()
	}
}
