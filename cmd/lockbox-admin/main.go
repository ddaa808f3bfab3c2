package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/lockbox/pkg/folders"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
	"github.com/platinummonkey/lockbox/pkg/secrets"
	"github.com/platinummonkey/lockbox/pkg/storage"
)

var (
	dbURL      = flag.String("db-url", getEnv("LOCKBOX_POSTGRES_URL", "postgres://localhost/lockbox?sslmode=disable"), "PostgreSQL connection URL")
	actorEmail = flag.String("actor", getEnv("LOCKBOX_ADMIN_ACTOR", "admin-cli@localhost"), "Email recorded as the acting principal")
	timeout    = flag.Duration("timeout", 30*time.Second, "Command timeout")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: lockbox-admin [flags] <command> [args]

Commands:
  migrate                           Apply database migrations
  ensure-admins <email> [email...]  Bootstrap administrator accounts
  assign-role <email> <role>        Grant a role to a user
  remove-role <email> <role>        Remove a role from a user
  activate <email>                  Re-enable a deactivated user
  deactivate <email>                Disable a user (sessions stop resolving)
  list-users                        Print all users with roles and status
  role-stats                        Print user counts per role

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	store := identity.NewStore(db)
	engine := rbac.NewEngine(nil)
	users := identity.NewService(store, engine, observability.NewLogger(observability.InfoLevel, os.Stderr))

	// The CLI acts with administrator rights; the service layer still
	// applies its own guards (last-admin, self-promotion).
	actor := &identity.Identity{
		Email: *actorEmail,
		Roles: []rbac.Role{rbac.RoleAdministrator},
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch args[0] {
	case "migrate":
		if err := storage.RunMigrations(ctx, db,
			identity.GetMigrations(),
			folders.GetMigrations(),
			secrets.GetMigrations(),
		); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Info("Migrations applied")

	case "ensure-admins":
		if len(args) < 2 {
			log.Fatal("ensure-admins requires at least one email")
		}
		if err := users.EnsureAdministrators(ctx, args[1:]); err != nil {
			log.Fatalf("Failed to ensure administrators: %v", err)
		}
		log.Infof("Ensured %d administrator(s)", len(args[1:]))

	case "assign-role":
		if len(args) != 3 {
			log.Fatal("assign-role requires <email> <role>")
		}
		if err := users.AssignRole(ctx, args[1], rbac.Role(args[2]), actor); err != nil {
			log.Fatalf("Failed to assign role: %v", err)
		}
		log.Infof("Assigned %s to %s", args[2], args[1])

	case "remove-role":
		if len(args) != 3 {
			log.Fatal("remove-role requires <email> <role>")
		}
		if err := users.RemoveRole(ctx, args[1], rbac.Role(args[2]), actor); err != nil {
			log.Fatalf("Failed to remove role: %v", err)
		}
		log.Infof("Removed %s from %s", args[2], args[1])

	case "activate", "deactivate":
		if len(args) != 2 {
			log.Fatalf("%s requires <email>", args[0])
		}
		active := args[0] == "activate"
		if err := store.SetActive(ctx, args[1], active); err != nil {
			log.Fatalf("Failed to update user: %v", err)
		}
		log.Infof("User %s is now %s", args[1], args[0]+"d")

	case "list-users":
		list, err := users.ListUsers(ctx, actor)
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		for _, u := range list {
			status := "active"
			if !u.IsActive {
				status = "inactive"
			}
			fmt.Printf("%-40s %-10s %s\n", u.Email, status, formatRoles(u.Roles))
		}

	case "role-stats":
		stats, err := users.RoleStats(ctx, actor)
		if err != nil {
			log.Fatalf("Failed to get role stats: %v", err)
		}
		for _, s := range stats {
			fmt.Printf("%-20s %d\n", s.Role, s.Users)
		}

	default:
		log.Errorf("Unknown command: %s", args[0])
		usage()
		os.Exit(2)
	}
}

func formatRoles(roles []rbac.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
