// internal/cli/database.go
//
// Database verbs.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aspc/piccolo/internal/database"
	"github.com/aspc/piccolo/internal/dbms"
)

func newDBCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage site databases",
	}

	var engine string
	var ignoreExisting bool
	create := &cobra.Command{
		Use:   "create <shortname> <database-name>",
		Short: "Create a database owned by a site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := dbms.ParseKind(engine)
			if err != nil {
				return fmt.Errorf("invalid dbms %q: use mysql or postgresql", engine)
			}
			rec, err := r.siteOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return r.app.Databases.Create(cmd.Context(), args[1], rec, kind,
				database.CreateOptions{IgnoreExisting: ignoreExisting})
		},
	}
	create.Flags().StringVarP(&engine, "dbms", "d", "",
		"database system for this database (mysql or postgresql)")
	create.Flags().BoolVarP(&ignoreExisting, "ignore-existing", "k", false,
		"adopt a schema already present on the engine instead of failing")
	_ = create.MarkFlagRequired("dbms")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <shortname> <database-name>",
		Short: "Drop a site's database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := r.siteOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return r.app.Databases.Delete(cmd.Context(), args[1], rec)
		},
	})

	return cmd
}
