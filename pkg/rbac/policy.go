package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the on-disk shape of a role policy overlay.
//
//	roles:
//	  guest:
//	    - access_secrets
//	  regular_user:
//	    - access_secrets
//	    - manage_secrets
//
// Roles named in the file replace their default permission sets; roles left
// out keep the defaults. The merged table must still pass Validate.
type PolicyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadPolicy reads a policy overlay from path and returns a Registry with
// the overlay merged over the default table.
func LoadPolicy(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy merges a YAML policy overlay over the default table.
func ParsePolicy(data []byte) (*Registry, error) {
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	table := DefaultTable()
	for name, perms := range file.Roles {
		role := Role(name)
		if !role.Valid() {
			return nil, fmt.Errorf("policy file: unknown role %q", name)
		}
		set := make([]Permission, 0, len(perms))
		for _, p := range perms {
			perm := Permission(p)
			if !perm.Valid() {
				return nil, fmt.Errorf("policy file: unknown permission %q for role %q", p, name)
			}
			set = append(set, perm)
		}
		table[role] = set
	}

	return NewRegistryFromTable(table)
}
