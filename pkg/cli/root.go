package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quimdev/dbman"
	"github.com/quimdev/dbman/pkg/config"
)

func version() string {
	return "v1.0.0"
}

type rootFlags struct {
	url     string
	cfgFile string
	profile string
	echo    bool
}

// NewVersionCmd builds the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version())
		},
	}
}

// NewRootCmd builds the top–level `dbman` command.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "dbman",
		Short: "dbman — raw SQL and query-builder access behind one session manager",
	}
	root.PersistentFlags().StringVar(&flags.url, "url", "", "Database URL (overrides config and env)")
	root.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "Connection profiles file")
	root.PersistentFlags().StringVar(&flags.profile, "profile", "", "Connection profile name")
	root.PersistentFlags().BoolVar(&flags.echo, "echo", false, "Log executed statements")

	root.AddCommand(NewPingCmd(flags))
	root.AddCommand(NewExecCmd(flags))
	root.AddCommand(NewSchemaCmd(flags))
	root.AddCommand(NewVersionCmd())
	return root
}

// resolveURL picks the database URL from, in order: --url, a profile from
// --config, the DBMAN_URL/DATABASE_URL environment.
func (f *rootFlags) resolveURL() (string, error) {
	if f.url != "" {
		return f.url, nil
	}
	if f.cfgFile != "" {
		cfg, err := config.Load(f.cfgFile)
		if err != nil {
			return "", err
		}
		conn, err := cfg.Resolve(f.profile)
		if err != nil {
			return "", err
		}
		return conn.URL(), nil
	}
	if url := config.URLFromEnv(); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("no database URL: pass --url, --config, or set DBMAN_URL")
}

// manager constructs a Manager from the resolved URL.
func (f *rootFlags) manager(opts ...dbman.Option) (*dbman.Manager, error) {
	url, err := f.resolveURL()
	if err != nil {
		return nil, err
	}
	if f.echo {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, dbman.WithEcho(), dbman.WithLogger(slog.New(handler)))
	}
	return dbman.New(url, opts...)
}
