package models

import "time"

// Owner is an account whose credentials are reconciled in isolation.
type Owner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportRun records one applied (or dry-run) import.
type ImportRun struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	DryRun    bool      `json:"dry_run"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
	Unchanged int       `json:"unchanged"`
	Conflicts int       `json:"conflicts"`
	CreatedAt time.Time `json:"created_at"`
}
