// internal/cli/status.go
//
// Instance-wide reporting verbs.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every site and user with their relationships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			sites, err := r.app.Store.ListSites(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Sites:")
			for _, s := range sites {
				report, err := r.app.Sites.Status(ctx, s.Shortname)
				if err != nil {
					return err
				}
				printSiteReport(cmd, report)
			}

			users, err := r.app.Store.ListUsers(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Users:")
			for _, u := range users {
				fmt.Fprintf(out, "[%s] %s <%s>\n", u.Username, u.FullName, u.Email)
				sitesOf, err := r.app.Store.SitesOfUser(ctx, u.Username)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\tsites: %s\n", joinNames(len(sitesOf), func(i int) string {
					return sitesOf[i].Shortname
				}))
			}
			return nil
		},
	}
}

func newListUsersCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:     "list-users",
		Aliases: []string{"list_users"},
		Short:   "List every user as a mail-ready address line",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := r.app.Store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			r.app.Log.Infow("listing users", "total", len(users))
			fmt.Fprintln(cmd.OutOrStdout(), joinNames(len(users), func(i int) string {
				return fmt.Sprintf("%s <%s>", users[i].FullName, users[i].Email)
			}))
			return nil
		},
	}
}

func newListSitesCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:     "list-sites",
		Aliases: []string{"list_sites"},
		Short:   "List every site shortname",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sites, err := r.app.Store.ListSites(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sites {
				fmt.Fprintln(cmd.OutOrStdout(), s.Shortname)
			}
			return nil
		},
	}
}
