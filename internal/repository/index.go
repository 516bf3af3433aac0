package repository

import "github.com/sakif/credstore/internal/model"

// Entry pairs a user with their password record.
type Entry struct {
	User     model.User
	Password model.Password
}

// Index holds the lookup maps derived from model.Data.
//
// It is rebuilt from scratch at startup and updated incrementally by the
// same task that appends to Data, so the two never disagree.
type Index struct {
	userByID    map[string]model.User
	userByEmail map[string]Entry
}

// BuildIndex derives an Index from data. A password whose UserID matches no
// user is dropped.
func BuildIndex(data model.Data) *Index {
	idx := &Index{
		userByID:    make(map[string]model.User, len(data.Users)),
		userByEmail: make(map[string]Entry, len(data.Passwords)),
	}

	for _, u := range data.Users {
		idx.userByID[u.ID] = u
	}
	for _, p := range data.Passwords {
		u, ok := idx.userByID[p.UserID]
		if !ok {
			continue
		}
		idx.userByEmail[u.Email] = Entry{User: u, Password: p}
	}

	return idx
}

// Insert adds one user and password. Call it only from the task that
// appends the same records to Data.
func (idx *Index) Insert(u model.User, p model.Password) {
	idx.userByID[u.ID] = u
	idx.userByEmail[u.Email] = Entry{User: u, Password: p}
}

func (idx *Index) ByID(id string) (model.User, bool) {
	u, ok := idx.userByID[id]
	return u, ok
}

func (idx *Index) ByEmail(email string) (Entry, bool) {
	e, ok := idx.userByEmail[email]
	return e, ok
}

// Len is the number of users with a password, i.e. users that can log in.
func (idx *Index) Len() int {
	return len(idx.userByEmail)
}
