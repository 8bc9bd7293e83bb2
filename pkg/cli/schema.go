package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quimdev/dbman"
)

// NewSchemaCmd builds the `schema` command group: create or drop the
// tables described by a schema file.
//
// The schema file lists tables in dependency order:
//
//	tables:
//	  - name: users
//	    definition: id INTEGER PRIMARY KEY, email TEXT NOT NULL
//	  - name: orders
//	    definition: id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id)
func NewSchemaCmd(flags *rootFlags) *cobra.Command {
	var schemaFile string

	cmd := &cobra.Command{
		Use:       "schema [create|drop]",
		Short:     "Create or drop the tables described by a schema file",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"create", "drop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(schemaFile)
			if err != nil {
				return err
			}
			m, err := flags.manager()
			if err != nil {
				return err
			}
			defer m.Close()

			switch args[0] {
			case "create":
				if err := m.CreateAll(cmd.Context(), schema); err != nil {
					return err
				}
				cmd.Printf("created %d tables\n", len(schema.Tables()))
			case "drop":
				if err := m.DropAll(cmd.Context(), schema); err != nil {
					return err
				}
				cmd.Printf("dropped %d tables\n", len(schema.Tables()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaFile, "file", "schema.yaml", "Schema file path")
	return cmd
}

// loadSchema reads table definitions from a YAML/TOML/JSON schema file.
func loadSchema(path string) (dbman.Schema, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var doc struct {
		Tables []dbman.TableDef `mapstructure:"tables"`
	}
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("schema file %s describes no tables", path)
	}
	return dbman.Tables(doc.Tables), nil
}
