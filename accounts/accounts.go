// Package accounts keeps user records under two denormalized copies, by
// email and by id, written together in one batch, the same discipline the
// post store applies to its three. Users are created at signup and mutated
// on profile or password changes; they are never deleted.
package accounts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cratedig/cratedig"
	"github.com/cratedig/cratedig/cratedig_errors"
	"github.com/cratedig/cratedig/utils"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Hash  string `json:"hash,omitempty"`
	// ResetToken is the single active password-reset token; each reset
	// request overwrites it, and a successful reset rotates it away.
	ResetToken string `json:"resetToken,omitempty"`
}

const minPasswordLen = 6

type Store struct {
	store *cratedig.Store
	log   utils.Logger
}

func New(store *cratedig.Store, log utils.Logger) *Store {
	return &Store{store: store, log: log}
}

// Signup creates an account with a fresh id; the display name starts as the
// email's local part. Fails with ErrExists if the email is taken.
func (as *Store) Signup(email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email required", cratedig_errors.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password of %d+ characters required",
			cratedig_errors.ErrValidation, minPasswordLen)
	}
	if _, err := as.GetByEmail(email); err == nil {
		return nil, cratedig_errors.ErrExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  email[:strings.IndexByte(email, '@')],
		Hash:  string(hash),
	}
	if err := as.putCopies(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the password against the stored bcrypt hash. A missing
// account and a wrong password are indistinguishable to the caller.
func (as *Store) Login(email, password string) (*User, error) {
	user, err := as.GetByEmail(strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, cratedig_errors.ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(password)) != nil {
		return nil, cratedig_errors.ErrBadCredentials
	}
	return user, nil
}

func (as *Store) GetByID(id string) (*User, error) {
	return as.get(cratedig.UserKey(id))
}

func (as *Store) GetByEmail(email string) (*User, error) {
	return as.get(cratedig.EmailKey(email))
}

// DisplayName implements cratedig.NameResolver.
func (as *Store) DisplayName(id string) (string, error) {
	user, err := as.GetByID(id)
	if err != nil {
		return "", err
	}
	return user.Name, nil
}

// UpdateProfile changes the display name on both copies.
func (as *Store) UpdateProfile(id, name string) error {
	user, err := as.GetByID(id)
	if err != nil {
		return err
	}
	user.Name = name
	return as.putCopies(user)
}

// RequestReset issues a new reset token, overwriting any previous one, and
// returns it for the caller to mail out. The token is only ever one.
func (as *Store) RequestReset(email string) (string, error) {
	user, err := as.GetByEmail(strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return "", err
	}
	user.ResetToken = uuid.NewString()
	if err := as.putCopies(user); err != nil {
		return "", err
	}
	return user.ResetToken, nil
}

// ResetPassword consumes a reset token: on match the password is rehashed
// and the token rotated so it cannot be replayed.
func (as *Store) ResetPassword(email, token, password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password of %d+ characters required",
			cratedig_errors.ErrValidation, minPasswordLen)
	}
	user, err := as.GetByEmail(strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return err
	}
	if token == "" || user.ResetToken != token {
		return cratedig_errors.ErrBadResetToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Hash = string(hash)
	user.ResetToken = uuid.NewString()
	return as.putCopies(user)
}

func (as *Store) get(key []byte) (*User, error) {
	val, err := as.store.Get(key)
	if err != nil {
		return nil, err
	}
	body, err := cratedig.Unseal('U', val)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: %w", cratedig_errors.ErrCorruptRecord, err)
	}
	return &user, nil
}

func (as *Store) putCopies(user *User) error {
	body, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("%w: %w", cratedig_errors.ErrStorage, err)
	}
	val := cratedig.Seal('U', body)
	b := as.store.NewBatch()
	defer b.Close()
	_ = b.Set(cratedig.EmailKey(user.Email), val, nil)
	_ = b.Set(cratedig.UserKey(user.ID), val, nil)
	if err := as.store.CommitBatch(b); err != nil {
		return fmt.Errorf("%w: %w", cratedig_errors.ErrStorage, err)
	}
	return nil
}
