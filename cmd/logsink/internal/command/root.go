// Package command implements the logsink command line.
package command

import (
	"github.com/spf13/cobra"

	"github.com/go-lynx/logsink/boot"
	"github.com/go-lynx/logsink/conf"
	"github.com/go-lynx/logsink/log"
)

// state is shared by the subcommands of one root command.
type state struct {
	confPath string
	logLevel string
	conf     *conf.Logsink
}

// NewRoot returns the logsink root command with all subcommands attached.
func NewRoot(version string) *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:   "logsink",
		Short: "Write log records to MongoDB, Redis streams or memory in grouped batches",
		Long: `logsink routes log records to destinations (collections or streams) by a
fixed name, a category mapping or a name template, and writes each batch with
one insert per destination.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.load()
		},
	}
	root.PersistentFlags().StringVarP(&st.confPath, "conf", "c", "", "config file (defaults to $"+boot.ConfigEnv+", then built-in defaults)")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "override log.level: error|warn|info|debug")

	root.AddCommand(newWriteCmd(st), newResolveCmd(st), newConfigCmd(st))
	return root
}

func (st *state) load() error {
	c, err := boot.LoadConfig(boot.ConfigPath(st.confPath))
	if err != nil {
		return err
	}
	// --log-level > log.level
	if st.logLevel != "" {
		if _, err := log.ParseLevel(st.logLevel); err != nil {
			return err
		}
		c.Log.Level = st.logLevel
	}
	st.conf = c
	return boot.InitLogger(c)
}
