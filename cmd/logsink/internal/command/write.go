package command

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kratos/kratos/v2/encoding"
	_ "github.com/go-kratos/kratos/v2/encoding/json"
	"github.com/spf13/cobra"

	"github.com/go-lynx/logsink/batch"
	"github.com/go-lynx/logsink/boot"
	"github.com/go-lynx/logsink/conf"
	"github.com/go-lynx/logsink/log"
	"github.com/go-lynx/logsink/observability/metrics"
	"github.com/go-lynx/logsink/record"
)

const maxLineSize = 4 << 20

func newWriteCmd(st *state) *cobra.Command {
	var (
		input         string
		metricsAddr   string
		batchSize     int
		flushInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write JSON-lines records to the configured destination",
		Long: `Reads one JSON record per line, for example

  {"source":"api","category":"Error","timestamp":"2019-12-10T08:00:00Z","description":"boom"}

and writes them in batches of batch.max_records, or every batch.flush_interval.`,
		Example: `  # Write records from a file to the destination in logsink.yaml
  logsink write -c logsink.yaml -i records.jsonl

  # Stream from stdin and expose Prometheus metrics
  tail -f app.jsonl | logsink write -c logsink.yaml --metrics-addr :9102`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := st.conf
			if batchSize > 0 {
				c.Batch.MaxRecords = batchSize
			}
			if cmd.Flags().Changed("flush-interval") {
				c.Batch.FlushInterval = conf.Duration(flushInterval)
			}
			if metricsAddr != "" {
				c.Metrics.Addr = metricsAddr
			}

			in := cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dest, err := boot.Build(ctx, c)
			if err != nil {
				return err
			}
			defer func() {
				if err := dest.Close(context.Background()); err != nil {
					log.Errorf("failed to close destination: %v", err)
				}
			}()

			if c.Metrics.Addr != "" {
				srv, err := serveMetrics(c.Metrics.Addr, dest.Metrics())
				if err != nil {
					return err
				}
				defer shutdown(srv)
			}

			n, err := ingest(ctx, in, dest, c.Batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s (%s)\n", n, dest.Name(), dest.Backend())
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON-lines input file, - for stdin")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address, overrides metrics.addr")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per batch, overrides batch.max_records")
	cmd.Flags().DurationVar(&flushInterval, "flush-interval", 0, "flush period, overrides batch.flush_interval")
	return cmd
}

// ingest decodes records from r and writes them through dest in batches.
// It returns the number of records written.
func ingest(ctx context.Context, r io.Reader, dest boot.Destination, bc conf.Batch) (int, error) {
	b, err := batch.New(dest.WriteContext, bc.MaxRecords, bc.FlushInterval.AsDuration())
	if err != nil {
		return 0, err
	}

	codec := encoding.GetCodec("json")
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var line int
	readErr := func() error {
		for sc.Scan() {
			line++
			text := bytes.TrimSpace(sc.Bytes())
			if len(text) == 0 {
				continue
			}
			rec := &record.Record{}
			if err := codec.Unmarshal(text, rec); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			if err := b.Add(ctx, rec); err != nil {
				return err
			}
		}
		return sc.Err()
	}()

	closeErr := b.Close(ctx)
	records, batches, failures := b.Stats()
	log.Debugw("msg", "ingest finished", "lines", line, "records", records, "batches", batches, "failures", failures)

	if err := errors.Join(readErr, closeErr); err != nil {
		return 0, err
	}
	if failures > 0 {
		return 0, fmt.Errorf("%d of %d batches failed", failures, failures+batches)
	}
	return int(records), nil
}

func serveMetrics(addr string, m *metrics.WriterMetrics) (*http.Server, error) {
	if err := m.Register(); err != nil {
		return nil, fmt.Errorf("failed to register writer metrics: %w", err)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server stopped: %v", err)
		}
	}()
	log.Infof("serving metrics on http://%s/metrics", ln.Addr())
	return srv, nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("failed to stop metrics server: %v", err)
	}
}
