// internal/cli/user.go
//
// User verbs.

package cli

import (
	"github.com/spf13/cobra"

	"github.com/aspc/piccolo/internal/user"
)

func newUserCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var noEmail, adopt bool
	create := &cobra.Command{
		Use:   "create <username> <full-name> <email>",
		Short: "Provision a new user account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.app.Users.Create(cmd.Context(), args[0], args[1], args[2], user.CreateOptions{
				SuppressWelcome: noEmail,
				AdoptExisting:   adopt,
			})
		},
	}
	create.Flags().BoolVarP(&noEmail, "no-email", "n", false,
		"suppress the automatic welcome email")
	create.Flags().BoolVarP(&adopt, "adopt-existing", "k", false,
		"bring an existing OS account under management instead of creating one")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <username>",
		Short: "Remove a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.app.Users.Delete(cmd.Context(), args[0])
		},
	})

	return cmd
}
