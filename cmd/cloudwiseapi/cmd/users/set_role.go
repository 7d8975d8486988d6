package users

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	userssvc "github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/users"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role <subject> <role>",
	Short: "Change a user's role",
	Long: `Changes the role of the user with the given identity provider subject
(for example "auth0|abc123"). This is how the first admin is bootstrapped.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, role := args[0], models.Role(args[1])
		if !role.Valid() {
			return userssvc.InvalidRoleError(role)
		}

		return withService(cmd.Context(), func(ctx context.Context, svc *userssvc.Service) error {
			user, err := svc.SetRoleBySubject(ctx, cliActor, subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d (%s) now has role %s\n", user.ID, user.Subject, user.Role)
			return nil
		})
	},
}
