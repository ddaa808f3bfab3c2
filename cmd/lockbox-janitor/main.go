package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/lockbox/pkg/async"
	"github.com/platinummonkey/lockbox/pkg/audit"
)

var (
	dbURL          = flag.String("db-url", getEnv("LOCKBOX_POSTGRES_URL", "postgres://localhost/lockbox?sslmode=disable"), "PostgreSQL connection URL")
	schedule       = flag.String("schedule", "30 1 * * *", "Cron schedule for retention cleanup (default: 01:30 UTC)")
	retentionDays  = flag.Int("retention-days", 90, "Days of audit history to keep")
	archiveEnabled = flag.Bool("archive", false, "Archive expired events to S3 before deleting them")
	archiveBucket  = flag.String("archive-bucket", getEnv("LOCKBOX_AUDIT_ARCHIVE_BUCKET", ""), "S3 bucket for archived audit events")
	archivePrefix  = flag.String("archive-prefix", getEnv("LOCKBOX_AUDIT_ARCHIVE_PREFIX", "audit-archive"), "S3 key prefix for archived audit events")
	archiveRegion  = flag.String("archive-region", getEnv("LOCKBOX_AUDIT_ARCHIVE_REGION", "us-east-1"), "AWS region for the archive bucket")
	awsAccessKey   = flag.String("aws-access-key", getEnv("LOCKBOX_AWS_ACCESS_KEY_ID", ""), "Static AWS access key (default: ambient credentials)")
	awsSecretKey   = flag.String("aws-secret-key", getEnv("LOCKBOX_AWS_SECRET_ACCESS_KEY", ""), "Static AWS secret key")
	runOnce        = flag.Bool("run-once", false, "Run cleanup once and exit (for testing or manual sweeps)")
	cleanupTimeout = flag.Duration("cleanup-timeout", time.Hour, "Timeout for a single cleanup run")
)

func main() {
	flag.Parse()

	// Connect to database
	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	dbLogger, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit store: %v", err)
	}
	store := audit.NewDBStore(dbLogger)

	if *archiveEnabled {
		if *archiveBucket == "" {
			log.Fatalf("Archive bucket is required when archiving is enabled")
		}
		awsOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(*archiveRegion)}
		if *awsAccessKey != "" {
			awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(*awsAccessKey, *awsSecretKey, "")))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsOpts...)
		if err != nil {
			log.Fatalf("Failed to load AWS configuration: %v", err)
		}
		store = store.WithArchiver(audit.NewArchiver(s3.NewFromConfig(awsCfg), *archiveBucket, *archivePrefix))
		log.Printf("Archiving expired events to s3://%s/%s", *archiveBucket, *archivePrefix)
	}

	policy := audit.RetentionPolicy{
		RetentionDays:  *retentionDays,
		ArchiveEnabled: *archiveEnabled,
		ArchiveBucket:  *archiveBucket,
		ArchivePrefix:  *archivePrefix,
	}

	// Run once mode (for testing or manual sweeps)
	if *runOnce {
		ctx, cancel := context.WithTimeout(context.Background(), *cleanupTimeout)
		defer cancel()

		removed, err := store.Cleanup(ctx, policy)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		log.Printf("Cleanup completed, removed %d events older than %d days", removed, *retentionDays)
		return
	}

	// Scheduled mode
	c := cron.New()

	_, err = c.AddFunc(*schedule, func() {
		log.Printf("Starting audit retention cleanup (retention: %d days)", *retentionDays)
		async.SafeGo(context.Background(), *cleanupTimeout, "audit retention cleanup", func(ctx context.Context) error {
			removed, err := store.Cleanup(ctx, policy)
			if err != nil {
				return err
			}
			log.Printf("Cleanup completed, removed %d events", removed)
			return nil
		})
	})
	if err != nil {
		log.Fatalf("Failed to schedule cleanup: %v", err)
	}

	c.Start()
	log.Println("Lockbox janitor started")
	log.Printf("Cleanup schedule: %s", *schedule)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop the cron scheduler
	ctx := c.Stop()
	<-ctx.Done()

	log.Println("Janitor stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
