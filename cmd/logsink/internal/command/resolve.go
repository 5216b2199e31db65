package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/template"
)

func newResolveCmd(st *state) *cobra.Command {
	var (
		source     string
		context    string
		category   string
		at         string
		dateFormat string
	)
	cmd := &cobra.Command{
		Use:   "resolve [TEMPLATE]",
		Short: "Print the destination name a template produces for the given fields",
		Long: `Resolves TEMPLATE, or route.template from the configuration, against a record
built from the flags. Keywords: $Source, $Context, $LogType or $Category with an
optional (N) truncation, $LogDate or $Timestamp with an optional (format).`,
		Example: `  logsink resolve '$Source-$LogType(3)-$LogDate(yyyyMMdd)' --source billing --category Error
  logsink resolve -c logsink.yaml --source api --time 2019-12-10T08:00:00Z`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := st.conf.Route.Template
			if len(args) == 1 {
				text = args[0]
			}
			if text == "" {
				return errors.New("no template given and route.template is not configured")
			}

			var opts []template.Option
			if dateFormat == "" && len(args) == 0 {
				dateFormat = st.conf.Route.DateFormat
			}
			if dateFormat != "" {
				opts = append(opts, template.WithDefaultDateFormat(dateFormat))
			}
			t, err := template.Compile(text, opts...)
			if err != nil {
				return err
			}

			r := &record.Record{Source: source, Context: context, Category: record.Info}
			if category != "" {
				if r.Category, err = record.ParseCategory(category); err != nil {
					return err
				}
			}
			r.Timestamp = time.Now()
			if at != "" {
				if r.Timestamp, err = time.Parse(time.RFC3339Nano, at); err != nil {
					return fmt.Errorf("invalid --time: %w", err)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), t.Resolve(r))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "record source")
	cmd.Flags().StringVar(&context, "context", "", "record context")
	cmd.Flags().StringVar(&category, "category", "", "record category (Info, Success, Event, Warning, Error, Failure, Critical)")
	cmd.Flags().StringVar(&at, "time", "", "record timestamp in RFC 3339, defaults to now")
	cmd.Flags().StringVar(&dateFormat, "date-format", "", "default format for date keywords without one")
	return cmd
}
