package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"gorm.io/gorm"

	"librarium/internal/auth"
	"librarium/internal/config"
	"librarium/internal/database"
	"librarium/internal/database/users"
	"librarium/internal/entities"
)

// CreateAdminCommand creates an administrator account, or promotes an
// existing user to administrator.
type CreateAdminCommand struct {
	Username     string
	Email        string
	Password     string
	DatabasePath string
}

func NewCreateAdminCommand() *CreateAdminCommand {
	return &CreateAdminCommand{}
}

func (cmd *CreateAdminCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)

	fs.StringVar(&cmd.Username, "username", "", "Username for the administrator account (required)")
	fs.StringVar(&cmd.Email, "email", "", "Email address for the account (required when creating)")
	fs.StringVar(&cmd.Password, "password", "", "Password for the account (required when creating)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the catalog database file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-admin -username <name> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an administrator account for the web interface and API.\n\n")
		fmt.Fprintf(os.Stderr, "When the username already exists, the user is promoted to the admin\n")
		fmt.Fprintf(os.Stderr, "role instead and -email/-password are ignored.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Create a fresh admin account:\n")
		fmt.Fprintf(os.Stderr, "  %s create-admin -username admin -email admin@example.com -password 's3cret-pass'\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Promote an existing member:\n")
		fmt.Fprintf(os.Stderr, "  %s create-admin -username alice\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Username == "" {
		return fmt.Errorf("required flag -username not provided")
	}

	return nil
}

func (cmd *CreateAdminCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	userRepo := users.NewRepository(db.DB)

	existing, err := userRepo.GetByUsername(cmd.Username)
	if err == nil {
		if existing.Role == entities.UserRoleAdmin {
			fmt.Printf("User %q is already an administrator.\n", cmd.Username)
			return nil
		}
		if err := userRepo.UpdateRole(existing.ID, entities.UserRoleAdmin); err != nil {
			return fmt.Errorf("failed to promote user: %w", err)
		}
		fmt.Printf("Promoted %q from %s to admin.\n", cmd.Username, existing.Role)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if cmd.Email == "" {
		return fmt.Errorf("required flag -email not provided")
	}
	if cmd.Password == "" {
		return fmt.Errorf("required flag -password not provided")
	}

	// Auth config carries the bcrypt cost; everything else is unused here.
	authService := auth.NewService(db.DB, config.NewConfig().Auth)

	user, err := authService.CreateUser(cmd.Username, cmd.Email, cmd.Password, entities.UserRoleAdmin)
	if err != nil {
		return fmt.Errorf("failed to create administrator: %w", err)
	}

	fmt.Printf("Created administrator %q (id %d).\n", user.Username, user.ID)
	return nil
}
