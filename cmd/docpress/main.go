// Command docpress runs the document service ops server and its
// maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docpress/internal/config"
	"docpress/internal/logger"
)

// defaultConfigFile is read when --config is not given and the file exists.
const defaultConfigFile = "docpress.yaml"

// app carries the state shared by every command once the root pre-run
// has loaded it.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.SugaredLogger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "docpress",
		Short: "Draft & publish document service",
		Long: `docpress stores content as documents: a documentId shared by a draft and a
published version in every locale. It keeps relations between documents
consistent across drafts, publications and locales.

Configuration is read from docpress.yaml (or --config), a .env file and
DOCPRESS_ environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSchemaCmd(a),
		newResolveCmd(a),
		newGetCmd(a),
	)
	return root
}

func (a *app) load() error {
	path := a.configPath
	if path == "" && config.Exists(defaultConfigFile) {
		path = defaultConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
