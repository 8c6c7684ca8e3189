// Package cli is the management command line of a go-restful project:
// runserver, createuser, changepassword, migrate, startproject, encrypt and
// version. Projects embed it in their main package and contribute their own
// routes through WithRoutes.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/asaidimu/go-restful/config"
	"github.com/asaidimu/go-restful/server"
	"github.com/spf13/cobra"
)

// Version is the framework version reported by the version command.
var Version = "0.3.0"

// RoutesFunc returns the project routes. They are mounted next to the admin
// routes when the server starts.
type RoutesFunc func(rt *Runtime) (*server.Router, error)

// Option configures the root command.
type Option func(*App)

// WithRoutes registers the project routes.
func WithRoutes(fn RoutesFunc) Option {
	return func(a *App) { a.routes = fn }
}

// WithName sets the executable name shown in help. Default "restful".
func WithName(name string) Option {
	return func(a *App) { a.name = name }
}

// WithConfigOptions presets the config sources; flags still override them.
func WithConfigOptions(opts config.Options) Option {
	return func(a *App) { a.configOpts = opts }
}

// WithInput replaces stdin, mainly for tests.
func WithInput(r io.Reader) Option {
	return func(a *App) { a.in = r }
}

// App holds the state shared by the commands.
type App struct {
	name       string
	routes     RoutesFunc
	configOpts config.Options
	in         io.Reader

	cfg *config.Config
}

// skipConfig marks commands that run without a loaded configuration.
const skipConfig = "restful/skip-config"

// NewRootCommand builds the command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &App{name: "restful", configOpts: config.Options{EnvFile: ".env"}}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:           a.name,
		Short:         "Manage a go-restful project",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] != "" {
				return nil
			}
			cfg, err := config.Load(a.configOpts)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	if a.in != nil {
		root.SetIn(a.in)
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.configOpts.File, "config", a.configOpts.File, "config file")
	flags.StringVar(&a.configOpts.Dir, "config-dir", a.configOpts.Dir, "directory of config files merged after --config")
	flags.StringVar(&a.configOpts.EnvFile, "env", a.configOpts.EnvFile, "dotenv file of RESTFUL_ variables")

	root.AddCommand(
		a.runserverCommand(),
		a.createuserCommand(),
		a.changepasswordCommand(),
		a.migrateCommand(),
		a.encryptCommand(),
		startprojectCommand(),
		versionCommand(),
	)
	return root
}

// Execute runs the command line and exits on failure.
func Execute(opts ...Option) {
	root := NewRootCommand(opts...)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the framework version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
