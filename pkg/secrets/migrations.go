package secrets

import "github.com/platinummonkey/lockbox/pkg/storage"

// GetMigrations returns the secrets schema. Versions 20-29 are reserved
// for this package; the folders tables (versions 10-19) must run first.
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     20,
			Description: "Create secrets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS secrets (
					id BIGSERIAL PRIMARY KEY,
					folder_id BIGINT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					ciphertext TEXT NOT NULL,
					created_by VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(folder_id, name)
				);

				CREATE INDEX idx_secrets_folder_id ON secrets(folder_id);
				CREATE INDEX idx_secrets_is_active ON secrets(is_active);
			`,
		},
	}
}
