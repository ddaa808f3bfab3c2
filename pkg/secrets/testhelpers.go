package secrets

import (
	"testing"

	"github.com/platinummonkey/lockbox/pkg/folders"
)

// TestKey is a fixed 32-byte hex key for tests.
const TestKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

// NewTestStores returns secret and folder stores over a shared in-memory
// SQLite database. The folder store owns the schema; the secrets table
// is part of it because cascade deactivation spans both.
func NewTestStores(t *testing.T) (*Store, *folders.Store) {
	t.Helper()
	folderStore := folders.NewTestStore(t)
	return NewStore(folderStore.DB()), folderStore
}

// NewTestCipher returns a cipher over TestKey.
func NewTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(TestKey)
	if err != nil {
		t.Fatalf("failed to build cipher: %v", err)
	}
	return c
}
