// Command libraryctl runs maintenance tasks against the library database:
// migrations, seeding, librarian accounts and one-off sweeps.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"libraryhub/internal/lifecycle"
	"libraryhub/internal/user"
	"libraryhub/internal/validation"
	"libraryhub/pkg/database"
	"libraryhub/pkg/models"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdin).Execute(); err != nil {
		os.Exit(1)
	}
}

// readPassword securely reads a password with masking when stdin is a
// terminal, or one line otherwise.
var readPassword = func(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		return strings.TrimSpace(string(b)), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newRootCmd(in io.Reader) *cobra.Command {
	var dbPath string
	var db *sqlx.DB

	root := &cobra.Command{
		Use:          "libraryctl",
		Short:        "Maintenance commands for the library database",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if db, err = database.Open(dbPath); err != nil {
				return err
			}
			return database.Migrate(db)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
	}
	def := os.Getenv("DB_PATH")
	if def == "" {
		def = "./data/library.db"
	}
	root.PersistentFlags().StringVar(&dbPath, "db", def, "path to the SQLite database")
	root.SetIn(in)

	dbFn := func() *sqlx.DB { return db }
	root.AddCommand(
		migrateCmd(),
		seedCmd(dbFn),
		createLibrarianCmd(dbFn),
		promoteCmd(dbFn),
		sweepCmd(dbFn),
	)
	return root
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// migration itself runs in the root pre-run
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func seedCmd(db func() *sqlx.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Insert sections and books from a JSON seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := database.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			sections, books, err := database.Seed(cmd.Context(), db(), list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d sections and %d books\n", sections, books)
			return nil
		},
	}
}

func createLibrarianCmd(db func() *sqlx.DB) *cobra.Command {
	var name, username, email string
	cmd := &cobra.Command{
		Use:   "create-librarian",
		Short: "Create a librarian account, prompting for the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Enter password for %s: ", username))
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if err := validation.Struct(validation.Register{Name: name, Username: username, Email: email, Password: password}); err != nil {
				return err
			}
			u, err := user.NewRepo(db()).Create(cmd.Context(), name, username, email, password, models.RoleLibrarian)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "librarian %s created\n", u.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	for _, f := range []string{"name", "username", "email"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func promoteCmd(db func() *sqlx.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <username>",
		Short: "Give an existing user the librarian role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := user.NewRepo(db()).SetRole(cmd.Context(), args[0], models.RoleLibrarian); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now a librarian\n", args[0])
			return nil
		},
	}
}

func sweepCmd(db func() *sqlx.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale requests and close overdue issuances now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			expired, overdue, err := lifecycle.New(db()).Sweep(cmd.Context(), lifecycle.All())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired requests: %d\noverdue issuances: %d\n", expired, overdue)
			return nil
		},
	}
}
