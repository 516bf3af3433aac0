// Package model defines the data structures used throughout the credential store.
// The `json:"..."` tags double as the on-disk snapshot format, so renaming a
// tag changes the file layout.
package model

// User represents a registered user account.
//
// ID is an xid assigned when the user is created and never changes.
// Email is unique across all users at all times.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Password holds the bcrypt hash for one user.
//
// UserID references User.ID. A Password without a matching User is
// meaningless and is dropped when the index is built.
type Password struct {
	UserID string `json:"userId"`
	Hash   string `json:"hash"`
}

// Data is the unit of persistence: the whole credential set, saved and
// loaded as one snapshot.
//
// Order is preserved so a snapshot written twice from the same state is
// byte-identical, which keeps the file easy to diff.
type Data struct {
	Users     []User     `json:"users"`
	Passwords []Password `json:"passwords"`
}

// Clone returns a deep copy of d.
//
// The save path hands a clone to the snapshot store so the write can happen
// outside the scheduler while later tasks keep appending to the original.
func (d Data) Clone() Data {
	users := make([]User, len(d.Users))
	copy(users, d.Users)

	passwords := make([]Password, len(d.Passwords))
	copy(passwords, d.Passwords)

	return Data{Users: users, Passwords: passwords}
}
