// Package storage provides database plumbing shared by the domain packages.
//
// # Overview
//
// Lockbox keeps all durable state in PostgreSQL. This package owns the two
// concerns that sit below the domain stores:
//
//   - Schema migrations: each domain package (identity, folders, secrets)
//     declares its own ordered []Migration set, and RunMigrations applies
//     them transactionally at startup, tracking applied versions in a
//     schema_migrations table.
//   - Connections: the postgres subpackage manages a primary connection
//     plus optional read replicas with round-robin selection and
//     background health eviction.
//
// # Migrations
//
//	err := storage.RunMigrations(ctx, db,
//		identity.GetMigrations(),
//		folders.GetMigrations(),
//		secrets.GetMigrations(),
//	)
//
// Migration versions are globally unique integers; each domain package owns
// a reserved range so sets can be applied together in one call.
//
// # Connections
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
//		PrimaryURL:  cfg.Database.URL,
//		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
//		MaxConns:    cfg.Database.MaxConns,
//	})
//	defer cm.Close()
//
//	writes := cm.Primary()
//	reads := cm.Replica() // falls back to primary when no replicas
//
// # Related Packages
//
//   - pkg/identity, pkg/folders, pkg/secrets, pkg/audit: domain stores
//   - pkg/observability: health checks over the primary connection
package storage
