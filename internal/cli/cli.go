// internal/cli/cli.go
//
// Command-line surface.
//
// Context
// -------
// The verb tree dispatches to the lifecycle managers.  The managers are
// built by an injected Builder only after the persistent flags are
// parsed, because the pretend/force policy has to reach every collaborator
// (runner, renderer, store, engine wrappers) at construction time.
// Tests inject a Builder over in-memory fakes; main wires the real one.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/aspc/piccolo/internal/database"
	"github.com/aspc/piccolo/internal/shell"
	"github.com/aspc/piccolo/internal/site"
	"github.com/aspc/piccolo/internal/store"
	"github.com/aspc/piccolo/internal/user"

	"go.uber.org/zap"
)

// App bundles the constructed managers the verbs dispatch to.
type App struct {
	Store     store.Store
	Users     *user.Manager
	Sites     *site.Manager
	Databases *database.Manager
	Log       *zap.SugaredLogger
}

// Builder constructs the App once the execution policy is known.
type Builder func(ctx context.Context, policy shell.Policy) (*App, error)

type root struct {
	build   Builder
	app     *App
	pretend bool
	force   bool
}

// NewRoot assembles the full verb tree.
func NewRoot(build Builder) *cobra.Command {
	r := &root{build: build}

	cmd := &cobra.Command{
		Use:           "piccolo",
		Short:         "Provision users, sites, domains, and databases for shared hosting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			policy := shell.Policy{Pretend: r.pretend, Force: r.force}
			app, err := r.build(cmd.Context(), policy)
			if err != nil {
				return err
			}
			r.app = app
			if policy.Pretend {
				app.Log.Info("doing a pretend run, no changes will be made")
			}
			if policy.Force {
				app.Log.Info("forcing completion, failed shell actions will be ignored")
			}
			return nil
		},
	}
	cmd.PersistentFlags().BoolVarP(&r.pretend, "pretend", "p", false,
		"log the commands that would run without making any changes")
	cmd.PersistentFlags().BoolVarP(&r.force, "force", "f", false,
		"ignore failed shell actions and force completion")

	cmd.AddCommand(
		newSiteCmd(r),
		newUserCmd(r),
		newDomainCmd(r),
		newDBCmd(r),
		newStatusCmd(r),
		newListUsersCmd(r),
		newListSitesCmd(r),
	)
	return cmd
}
