package secrets

import "time"

// Secret is an encrypted value stored in a folder. Ciphertext never
// leaves the package: it is excluded from JSON and only the Reveal path
// decrypts it.
type Secret struct {
	ID          int64     `json:"id"`
	FolderID    int64     `json:"folder_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Ciphertext  string    `json:"-"`
	CreatedBy   string    `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateParams carries the inputs for secret creation. Plaintext is the
// value to seal; it is never stored or logged.
type CreateParams struct {
	FolderID    int64
	Name        string
	Description string
	Plaintext   string
}

// RevealedSecret pairs a secret's metadata with its decrypted value for
// the reveal response.
type RevealedSecret struct {
	Secret
	Value string `json:"value"`
}
