package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"librarium/internal/audit"
	"librarium/internal/config"
	"librarium/internal/database"
	auditdb "librarium/internal/database/audit"
	"librarium/internal/entities"
)

// CleanupAuditCommand removes audit events older than the retention window.
// The server normally does this on a schedule; the command exists for
// one-shot runs and cron-less deployments.
type CleanupAuditCommand struct {
	DatabasePath string
	Days         int
}

func NewCleanupAuditCommand() *CleanupAuditCommand {
	return &CleanupAuditCommand{}
}

func (cmd *CleanupAuditCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("cleanup-audit", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the catalog database file")
	fs.IntVar(&cmd.Days, "days", 0, "Retention in days (defaults to AUDIT_RETENTION_DAYS)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s cleanup-audit [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Delete audit events older than the retention window.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Use the configured retention:\n")
		fmt.Fprintf(os.Stderr, "  %s cleanup-audit\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Keep only the last week:\n")
		fmt.Fprintf(os.Stderr, "  %s cleanup-audit -days 7\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Days == 0 {
		cmd.Days = config.NewConfig().Audit.RetentionDays
	}
	if cmd.Days <= 0 {
		return fmt.Errorf("retention must be a positive number of days, got %d", cmd.Days)
	}

	return nil
}

func (cmd *CleanupAuditCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	auditor := audit.NewService(auditdb.NewRepository(db.DB))

	removed, err := auditor.DeleteOldEvents(time.Duration(cmd.Days) * 24 * time.Hour)

	// Record the run synchronously so the event survives process exit.
	event := &entities.AuditEvent{
		EventType: entities.AuditEventCleanup,
		Action:    "cleanup_audit",
		Status:    entities.AuditStatusSuccess,
	}
	if md, e := json.Marshal(map[string]any{"removed": removed}); e == nil {
		event.Metadata = string(md)
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = err.Error()
	}
	if logErr := auditor.Log(event); logErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record cleanup event: %v\n", logErr)
	}

	if err != nil {
		return fmt.Errorf("failed to delete old audit events: %w", err)
	}

	fmt.Printf("Removed %d audit events older than %d days.\n", removed, cmd.Days)
	return nil
}
