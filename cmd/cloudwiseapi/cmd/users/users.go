package users

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/cmd/cmdutil"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/config"
	userssvc "github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/users"
)

// cliActor is recorded in the audit log for changes made from the command line.
const cliActor = "cli"

// UsersCmd is the parent command for user management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage provisioned users",
	Long: `Commands for inspecting users and changing their roles directly against the database.
Users are provisioned on first login; they cannot be created here.`,
}

// withService opens the database and runs fn with a user service over it.
func withService(ctx context.Context, fn func(ctx context.Context, svc *userssvc.Service) error) error {
	cfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := cmdutil.Logger(cfg)

	db, err := cmdutil.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer cmdutil.CloseDB(db, logger)

	return fn(ctx, userssvc.NewService(db, logger))
}

func init() {
	listCmd.Flags().IntVar(&limitFlag, "limit", userssvc.DefaultPageSize, "Maximum number of users to print")
	listCmd.Flags().IntVar(&offsetFlag, "offset", 0, "Number of users to skip")

	UsersCmd.AddCommand(listCmd)
	UsersCmd.AddCommand(setRoleCmd)
}
