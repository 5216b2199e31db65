package command

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-lynx/logsink/conf"
)

const redacted = "******"

func newConfigCmd(st *state) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with defaults applied",
		Example: `  logsink config -c logsink.yaml
  logsink config --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := map[string]*conf.Logsink{conf.Key: redact(st.conf)}
			switch format {
			case "yaml":
				return exportYAML(cmd.OutOrStdout(), out)
			case "json":
				return exportJSON(cmd.OutOrStdout(), out)
			}
			return fmt.Errorf("unknown format %q, want yaml or json", format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml/json)")
	return cmd
}

// redact returns a copy of c without credentials.
func redact(c *conf.Logsink) *conf.Logsink {
	cp := *c
	if c.MongoDB != nil {
		m := *c.MongoDB
		if m.Password != "" {
			m.Password = redacted
		}
		cp.MongoDB = &m
	}
	if c.Redis != nil {
		r := *c.Redis
		if r.Password != "" {
			r.Password = redacted
		}
		cp.Redis = &r
	}
	return &cp
}

func exportJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func exportYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}
