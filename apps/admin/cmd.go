package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/anquinko/academia/core"
	"github.com/anquinko/academia/core/grading"
	"github.com/anquinko/academia/core/user"
	"github.com/anquinko/academia/storage/database"
	sqlxrepos "github.com/anquinko/academia/storage/database/sqlx"
)

// mockable
var (
	readPasswordFunc = term.ReadPassword
	migrateFunc      = func(db *sqlx.DB, command string, args ...string) error {
		return database.Migrate(db.DB, command, args...)
	}
	loadFixtureFunc = sqlxrepos.LoadFixture
)

var errHelp = errors.New("help provided")

// needsDB annotates the commands that connect to the database.
const needsDB = "needs-db"

type commandLine struct {
	conf   *core.Config
	db     *sqlx.DB
	usrSvc *user.Service
	out    io.Writer
}

func (cli *commandLine) run(args []string) error {
	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	root := cli.rootCommand()
	root.SetArgs(args)
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	return root.ExecuteContext(context.Background())
}

func (cli *commandLine) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Academia administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := cmd.Annotations[needsDB]; !ok || cli.usrSvc != nil {
				return nil
			}
			return cli.connect()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}

	root.AddCommand(
		cli.migrateCommand(),
		cli.addUserCommand(),
		cli.resetPasswordCommand(),
		cli.seedCommand(),
		cli.evaluateCommand(),
	)
	return root
}

func (cli *commandLine) connect() error {
	db, err := database.Open(cli.conf)
	if err != nil {
		return err
	}
	cli.db = db
	cli.usrSvc = user.NewService(sqlxrepos.NewUserRepository(db))
	return nil
}

func (cli *commandLine) close() {
	if cli.db != nil {
		_ = cli.db.Close()
	}
}

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "migrate COMMAND [ARGS...]",
		Short:       "Run a goose command (up, down, status, version...) against the embedded migrations",
		Annotations: map[string]string{needsDB: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return migrateFunc(cli.db, args[0], args[1:]...)
		},
	}
}

func (cli *commandLine) addUserCommand() *cobra.Command {
	var (
		in      addUserInput
		isAdmin bool
	)
	cmd := &cobra.Command{
		Use:         "adduser",
		Short:       "Create a user, or update it when the username or email is taken. The password is prompted.",
		Annotations: map[string]string{needsDB: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.username == "" && in.email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			if isAdmin {
				in.roles = user.AllRoles
			}
			in.password = pwd

			usr, err := cli.addUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %q saved (id %d)\n", usr.Username, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.username, "username", "u", "", "The user's username")
	cmd.Flags().StringVarP(&in.email, "email", "e", "", "The user's email")
	cmd.Flags().StringVarP(&in.name, "name", "n", "", "The user's full name")
	cmd.Flags().StringSliceVarP(&in.roles, "role", "r", nil, "The user's roles")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant every role")
	return cmd
}

func (cli *commandLine) resetPasswordCommand() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:         "resetpassword",
		Short:       "Reset a user's password. The password is prompted.",
		Annotations: map[string]string{needsDB: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), uname, pwd)
		},
	}
	cmd.Flags().StringVarP(&uname, "username", "u", "", "The user's username or email")
	return cmd
}

func (cli *commandLine) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "seed FILE",
		Short:       "Load a YAML fixture into the database",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{needsDB: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			fx, err := database.ParseFixture(f)
			if err != nil {
				return err
			}
			if err = loadFixtureFunc(cmd.Context(), cli.db, fx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d users, %d classes, %d registrations\n",
				len(fx.Users), len(fx.Classes), len(fx.Registrations))
			return nil
		},
	}
}

func (cli *commandLine) evaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "evaluate WEIGHT:VALUE...",
		Short:   "Print the weighted average, verdict and tier of the given scores",
		Example: "  admin evaluate 0.3:6 0.7:9 0.2:",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := parseEntries(args)
			if err != nil {
				return err
			}
			res, err := grading.EvaluateRaw(entries)
			if err != nil {
				return err
			}
			labels := res.Labels()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "average: %s\n", labels["average"])
			fmt.Fprintf(out, "verdict: %s\n", labels["verdict"])
			fmt.Fprintf(out, "tier:    %s\n", labels["tier"])
			fmt.Fprintf(out, "graded:  %d/%d\n", res.Graded, len(entries))
			return nil
		},
	}
}

func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

// parseEntries reads "weight:value" args; the value may be blank.
func parseEntries(args []string) ([]grading.RawEntry, error) {
	entries := make([]grading.RawEntry, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%q: entries must be of form WEIGHT:VALUE", arg)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: weight must be a number", arg)
		}
		entries = append(entries, grading.RawEntry{Weight: weight, Value: parts[1]})
	}
	return entries, nil
}
