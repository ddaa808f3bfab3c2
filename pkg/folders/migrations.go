package folders

import "github.com/platinummonkey/lockbox/pkg/storage"

// GetMigrations returns the folders and folder_grants schema. Versions
// 10-19 are reserved for this package.
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     10,
			Description: "Create folders table",
			SQL: `
				CREATE TABLE IF NOT EXISTS folders (
					id BIGSERIAL PRIMARY KEY,
					path VARCHAR(1024) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					icon VARCHAR(64) NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					parent_id BIGINT REFERENCES folders(id) ON DELETE RESTRICT,
					created_by VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_folders_parent_id ON folders(parent_id);
				CREATE INDEX idx_folders_created_by ON folders(created_by);
				CREATE INDEX idx_folders_is_active ON folders(is_active);
			`,
		},
		{
			Version:     11,
			Description: "Create folder_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS folder_grants (
					id BIGSERIAL PRIMARY KEY,
					folder_id BIGINT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
					principal_email VARCHAR(255) NOT NULL,
					level VARCHAR(16) NOT NULL,
					granted_by VARCHAR(255) NOT NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(folder_id, principal_email)
				);

				CREATE INDEX idx_folder_grants_folder_id ON folder_grants(folder_id);
				CREATE INDEX idx_folder_grants_principal ON folder_grants(principal_email);
			`,
		},
	}
}
