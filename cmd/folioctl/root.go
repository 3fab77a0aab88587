package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/folio/internal/activity"
	"github.com/folio/internal/app"
	"github.com/folio/internal/config"
	"github.com/folio/internal/db"
	"github.com/folio/internal/logging"
	"github.com/folio/internal/maintenance"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

var errAborted = errors.New("aborted")

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "folioctl",
		Short:         "Maintenance commands for the folio blog backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configFile != "" {
				os.Setenv("CONFIG_FILE", configFile)
			}
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")

	root.AddCommand(
		newMigrateCmd(),
		newMigrateFreshCmd(),
		newSeedCmd(),
		newCommandsCmd(),
		newActivityCmd(),
		newUserCmd(),
	)
	return root
}

// withApp 加载配置并打开应用，命令结束后关闭。
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.Load()
	logger := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(cfg, logger)
	if err != nil {
		return report(err)
	}
	defer a.Close()

	return report(fn(context.Background(), a))
}

func report(err error) error {
	if err == nil || errors.Is(err, errAborted) {
		return err
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+err.Error()))
	if errors.Is(err, maintenance.ErrUnrecognizedCommand) {
		fmt.Fprintln(os.Stderr, labelStyle.Render("accepted: "+strings.Join(maintenance.AllowedCommands(), ", ")))
	}
	return err
}

// dispatch sends input through the same allow-list the developer panel uses.
func dispatch(input string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		cmd, err := a.Maintenance.Execute(ctx, activity.CLI, input)
		if err != nil {
			return err
		}
		fmt.Println(successStyle.Render("✓ Executed command: " + cmd.String()))
		return nil
	})
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch("migrate")
		},
	}
}

func newMigrateFreshCmd() *cobra.Command {
	var (
		seed  bool
		force bool
	)
	cmd := &cobra.Command{
		Use:   "migrate-fresh",
		Short: "Drop every table and migrate again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				confirmed := false
				err := huh.NewConfirm().
					Title("Drop all tables?").
					Description("migrate-fresh destroys every row in " + config.Load().DatabasePath + ".").
					Affirmative("Drop").
					Negative("Cancel").
					Value(&confirmed).
					Run()
				if err != nil {
					return report(err)
				}
				if !confirmed {
					fmt.Println(warnStyle.Render("Aborted, nothing was dropped."))
					return errAborted
				}
			}

			input := "migrate-fresh"
			if seed {
				input += " --seed"
			}
			return dispatch(input)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Run DatabaseSeeder afterwards")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var class string
	cmd := &cobra.Command{
		Use:   "db-seed",
		Short: "Run DatabaseSeeder or a single seeder class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "db-seed"
			if class = strings.TrimSpace(class); class != "" {
				input += " --class=" + class
			}
			return dispatch(input)
		},
	}
	cmd.Flags().StringVar(&class, "class", "", "Seeder class name, e.g. PostSeeder")
	return cmd
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the accepted maintenance commands and seeders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				panel, err := a.Maintenance.Panel(ctx, activity.CLI)
				if err != nil {
					return err
				}
				fmt.Println(headerStyle.Render("Commands"))
				for _, c := range panel.Commands {
					fmt.Println("  " + c)
				}
				fmt.Println(headerStyle.Render("Seeders"))
				for _, s := range panel.Seeders {
					fmt.Println("  " + s)
				}
				return nil
			})
		},
	}
}

func newActivityCmd() *cobra.Command {
	var (
		channel string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the most recent audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				result, err := a.Activity.List(ctx, activity.Filter{Channel: channel, PerPage: limit})
				if err != nil {
					return err
				}
				if len(result.Entries) == 0 {
					fmt.Println(labelStyle.Render("No activity recorded."))
					return nil
				}
				for _, e := range result.Entries {
					fmt.Printf("%s %s %s %s\n",
						labelStyle.Render(e.CreatedAt.Format("2006-01-02 15:04:05")),
						headerStyle.Render(e.Channel),
						labelStyle.Render(e.CauserName),
						e.Description)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Only show entries on this channel")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	return cmd
}

func newUserCmd() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage admin accounts",
	}

	var (
		username string
		password string
		role     string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				err := huh.NewInput().
					Title("Password for " + username).
					EchoMode(huh.EchoModePassword).
					Value(&password).
					Run()
				if err != nil {
					return report(err)
				}
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				if err := a.Runner.Migrate(ctx); err != nil {
					return err
				}
				if err := a.Runner.Seed(ctx, "RolePermissionSeeder"); err != nil {
					return err
				}
				u, err := db.EnsureUser(a.DB.WithContext(ctx), username, password, role)
				if err != nil {
					return err
				}
				if u == nil {
					return errors.New("username and password are required")
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("✓ User %s ready (id %d)", u.Username, u.ID)))
				return nil
			})
		},
	}
	create.Flags().StringVar(&username, "username", "", "Account name")
	create.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	create.Flags().StringVar(&role, "role", db.MasterRole, "Role to grant")
	_ = create.MarkFlagRequired("username")

	user.AddCommand(create)
	return user
}
