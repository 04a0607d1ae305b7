// Package auth owns users, passwords, bearer tokens and DNA reference
// samples. The store is not safe for concurrent use on its own: the
// engine serializes every access under its single mutex.
package auth

import (
	"strings"

	"github.com/google/uuid"

	"github.com/openalpha/hourex/exchange/dna"
	"github.com/openalpha/hourex/exchange/types"
)

// Store maps usernames to passwords, tokens to usernames, and usernames
// to their DNA reference samples.
type Store struct {
	users  map[string]string
	tokens map[string]string
	dna    map[string][]string
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]string),
		tokens: make(map[string]string),
		dna:    make(map[string][]string),
	}
}

// Register creates a user. Username and password are trimmed; empty
// values are rejected.
func (s *Store) Register(username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return types.ErrBadRequest
	}
	if _, ok := s.users[username]; ok {
		return types.ErrConflict
	}
	s.users[username] = password
	return nil
}

// Login verifies the password and mints a fresh token bound to the user.
func (s *Store) Login(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return "", types.ErrUnauthorized
	}
	stored, ok := s.users[username]
	if !ok || stored != password {
		return "", types.ErrUnauthorized
	}
	return s.mintToken(username), nil
}

// ChangePassword swaps the credential and invalidates every token bound
// to the user.
func (s *Store) ChangePassword(username, oldPassword, newPassword string) error {
	username = strings.TrimSpace(username)
	oldPassword = strings.TrimSpace(oldPassword)
	newPassword = strings.TrimSpace(newPassword)
	if username == "" || oldPassword == "" || newPassword == "" {
		return types.ErrBadRequest
	}
	stored, ok := s.users[username]
	if !ok || stored != oldPassword {
		return types.ErrUnauthorized
	}
	s.users[username] = newPassword
	for token, owner := range s.tokens {
		if owner == username {
			delete(s.tokens, token)
		}
	}
	return nil
}

// Resolve returns the username bound to a bearer token.
func (s *Store) Resolve(token string) (string, bool) {
	username, ok := s.tokens[token]
	return username, ok
}

// SubmitDNA registers a reference sample for an existing user.
// Duplicate samples are accepted silently but stored once.
func (s *Store) SubmitDNA(username, password, sample string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.ErrBadRequest
	}
	normalized, ok := dna.Normalize(sample)
	if !ok {
		return types.ErrBadRequest
	}
	stored, ok := s.users[username]
	if !ok || stored != password {
		return types.ErrUnauthorized
	}
	for _, existing := range s.dna[username] {
		if existing == normalized {
			return nil
		}
	}
	s.dna[username] = append(s.dna[username], normalized)
	return nil
}

// DNALogin authenticates against any of the user's reference samples and
// mints a token on success.
func (s *Store) DNALogin(username, sample string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", types.ErrBadRequest
	}
	normalized, ok := dna.Normalize(sample)
	if !ok {
		return "", types.ErrBadRequest
	}
	if _, ok := s.users[username]; !ok {
		return "", types.ErrUnauthorized
	}
	for _, ref := range s.dna[username] {
		if dna.Matches(ref, normalized) {
			return s.mintToken(username), nil
		}
	}
	return "", types.ErrUnauthorized
}

func (s *Store) mintToken(username string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.tokens[token] = username
	return token
}

// UserCount returns the number of registered users.
func (s *Store) UserCount() int { return len(s.users) }

// Users returns a copy of the username→password table for snapshots.
func (s *Store) Users() map[string]string {
	out := make(map[string]string, len(s.users))
	for u, p := range s.users {
		out[u] = p
	}
	return out
}

// DNASamples returns a copy of the per-user sample lists for snapshots.
func (s *Store) DNASamples() map[string][]string {
	out := make(map[string][]string, len(s.dna))
	for u, samples := range s.dna {
		out[u] = append([]string(nil), samples...)
	}
	return out
}

// Restore replaces users and DNA samples from a snapshot. Tokens are not
// durable: a restart logs everyone out.
func (s *Store) Restore(users map[string]string, dnaSamples map[string][]string) {
	s.users = make(map[string]string, len(users))
	for u, p := range users {
		s.users[u] = p
	}
	s.dna = make(map[string][]string, len(dnaSamples))
	for u, samples := range dnaSamples {
		s.dna[u] = append([]string(nil), samples...)
	}
	s.tokens = make(map[string]string)
}
