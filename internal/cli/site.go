// internal/cli/site.go
//
// Site, domain, and membership verbs.

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aspc/piccolo/internal/site"
	"github.com/aspc/piccolo/internal/store"
)

func (r *root) siteOf(ctx context.Context, shortname string) (*store.Site, error) {
	rec, err := r.app.Store.GetSite(ctx, shortname)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no site named %s exists", shortname)
	}
	return rec, nil
}

func (r *root) userOf(ctx context.Context, username string) (*store.User, error) {
	rec, err := r.app.Store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no user named %s exists", username)
	}
	return rec, nil
}

func newSiteCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Manage sites",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <shortname> <full-name>",
		Short: "Provision a new site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.app.Sites.Create(cmd.Context(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <shortname>",
		Short: "Decommission a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.app.Sites.Delete(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <shortname>",
		Short: "Show one site's users, domains, and databases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := r.app.Sites.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSiteReport(cmd, report)
			return nil
		},
	})

	var noEmail bool
	adduser := &cobra.Command{
		Use:   "adduser <shortname> <username>",
		Short: "Grant a user access to a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := r.siteOf(ctx, args[0])
			if err != nil {
				return err
			}
			usr, err := r.userOf(ctx, args[1])
			if err != nil {
				return err
			}
			return r.app.Sites.AddUser(ctx, rec, usr, noEmail)
		},
	}
	adduser.Flags().BoolVarP(&noEmail, "no-email", "n", false,
		"suppress the automatic welcome email")
	cmd.AddCommand(adduser)

	cmd.AddCommand(&cobra.Command{
		Use:   "removeuser <shortname> <username>",
		Short: "Revoke a user's access to a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := r.siteOf(ctx, args[0])
			if err != nil {
				return err
			}
			usr, err := r.userOf(ctx, args[1])
			if err != nil {
				return err
			}
			return r.app.Sites.RemoveUser(ctx, rec, usr)
		},
	})

	return cmd
}

func newDomainCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Manage site domains",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <shortname> <domain-name>",
		Short: "Attach a domain to a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := r.siteOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return r.app.Sites.CreateDomain(cmd.Context(), args[1], rec)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <shortname> <domain-name>",
		Short: "Detach a domain from a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := r.siteOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return r.app.Sites.DeleteDomain(cmd.Context(), args[1], rec)
		},
	})

	return cmd
}

func printSiteReport(cmd *cobra.Command, report *site.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[%s] %s (%s)\n", report.Site.Shortname, report.Site.FullName, report.Home)
	fmt.Fprintf(out, "\tusers: %s\n", joinNames(len(report.Users), func(i int) string {
		return report.Users[i].Username
	}))
	fmt.Fprintf(out, "\tdatabases: %s\n", joinNames(len(report.Databases), func(i int) string {
		return report.Databases[i].DBName
	}))
	fmt.Fprintf(out, "\tdomains: %s\n", joinNames(len(report.Domains), func(i int) string {
		return report.Domains[i].DomainName
	}))
}

func joinNames(n int, name func(int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = name(i)
	}
	return strings.Join(parts, ", ")
}
