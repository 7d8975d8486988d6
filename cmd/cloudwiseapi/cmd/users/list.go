package users

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	userssvc "github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/users"
)

var (
	limitFlag  int
	offsetFlag int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List provisioned users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, svc *userssvc.Service) error {
			list, err := svc.List(ctx, limitFlag, offsetFlag)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSUBJECT\tEMAIL\tROLE\tLAST LOGIN")
			for _, u := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Subject, u.Email, u.Role, u.LastLoginAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		})
	},
}
