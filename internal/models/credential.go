// Package models defines data types for imported credentials and change sets.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Field identifies one of the five logical credential fields.
type Field int

// Credential fields in canonical hash order.
const (
	FieldName Field = iota
	FieldURL
	FieldUsername
	FieldPassword
	FieldNote
)

// Fields lists every credential field in canonical hash order.
var Fields = [...]Field{FieldName, FieldURL, FieldUsername, FieldPassword, FieldNote}

// String returns the JSON name of the field.
func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldURL:
		return "url"
	case FieldUsername:
		return "username"
	case FieldPassword:
		return "password"
	case FieldNote:
		return "note"
	default:
		return "unknown"
	}
}

// Field length limits enforced on incoming records.
const (
	MaxNameLen     = 1000
	MaxURLLen      = 4096
	MaxUsernameLen = 1000
	MaxPasswordLen = 4096
	MaxNoteLen     = 100000
)

// hashSeparator delimits fields inside the hashed content so that
// ("ab","c") and ("a","bc") never collide.
const hashSeparator = "\x1f"

// Canonical lowercases and trims a field value for hashing and comparison.
func Canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ContentHash returns the hex SHA-256 of the canonicalized fields.
func ContentHash(name, url, username, password, note string) string {
	var b strings.Builder
	for i, v := range [...]string{name, url, username, password, note} {
		if i > 0 {
			b.WriteString(hashSeparator)
		}
		b.WriteString(Canonical(v))
	}

	sum := sha256.Sum256([]byte(b.String()))

	return hex.EncodeToString(sum[:])
}

// IncomingRecord is one row of a third-party password-manager export.
// It has no identity beyond its field values.
type IncomingRecord struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
	Note     string `json:"note"`
}

// Hash returns the canonical content hash of the record.
func (r IncomingRecord) Hash() string {
	return ContentHash(r.Name, r.URL, r.Username, r.Password, r.Note)
}

// Value returns the raw value of field f.
func (r IncomingRecord) Value(f Field) string {
	switch f {
	case FieldName:
		return r.Name
	case FieldURL:
		return r.URL
	case FieldUsername:
		return r.Username
	case FieldPassword:
		return r.Password
	case FieldNote:
		return r.Note
	default:
		return ""
	}
}

// Validate checks field lengths on an incoming record.
func (r IncomingRecord) Validate() error {
	limits := [...]int{MaxNameLen, MaxURLLen, MaxUsernameLen, MaxPasswordLen, MaxNoteLen}
	for i, f := range Fields {
		if len(r.Value(f)) > limits[i] {
			return ErrFieldTooLong(f.String(), limits[i])
		}
	}

	if r.Name == "" && r.URL == "" && r.Username == "" && r.Password == "" && r.Note == "" {
		return ErrEmptyRecord
	}

	return nil
}

// SavedRecord is a credential retained from a previous import.
type SavedRecord struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Username    string    `json:"username"`
	Password    string    `json:"password,omitempty"`
	Note        string    `json:"note"`
	ContentHash string    `json:"content_hash"`
	Ignored     bool      `json:"ignored"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
}

// NewSavedRecord builds a saved record from an incoming record's content
// and fills in its content hash.
func NewSavedRecord(id int64, r IncomingRecord) SavedRecord {
	return SavedRecord{
		ID:          id,
		Name:        r.Name,
		URL:         r.URL,
		Username:    r.Username,
		Password:    r.Password,
		Note:        r.Note,
		ContentHash: r.Hash(),
	}
}

// Value returns the raw value of field f.
func (s SavedRecord) Value(f Field) string {
	return s.Content().Value(f)
}

// Content returns the five logical fields as an IncomingRecord.
func (s SavedRecord) Content() IncomingRecord {
	return IncomingRecord{
		Name:     s.Name,
		URL:      s.URL,
		Username: s.Username,
		Password: s.Password,
		Note:     s.Note,
	}
}

// Redacted returns a copy with the password cleared, for listings.
func (s SavedRecord) Redacted() SavedRecord {
	s.Password = ""
	return s
}

// ScoredMatch associates a saved record with a match quality.
// HashMatch is true exactly when the saved hash equals the incoming hash.
type ScoredMatch struct {
	Saved     SavedRecord `json:"saved"`
	Score     float64     `json:"score"`
	HashMatch bool        `json:"hash_match"`
}
