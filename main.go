package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hashprng/internal/config"
	"hashprng/internal/stats"
	"hashprng/internal/store"
	"hashprng/prng"
	"hashprng/prng/hashes"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hashprng",
		Short:        "Pool/counter/hash pseudo-random generator service",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newSampleCmd(), newStatsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		addr   string
		path   string
		memory bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("store") {
				cfg.StorePath = path
			}
			if memory {
				cfg.StorePath = ""
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":4040", "listen address")
	cmd.Flags().StringVar(&path, "store", "store.json", "snapshot store file")
	cmd.Flags().BoolVar(&memory, "memory", false, "keep pools in memory only")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	log, err := newLogger(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.StorePath)
	if errors.Is(err, store.ErrCorrupt) {
		log.Warn().Err(err).Msg("starting with an empty store")
		st, err = store.Open(cfg.StorePath)
	}
	if err != nil {
		return err
	}
	s, err := newServer(cfg, log, st)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      600 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StorePath).Msg("hashprng server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return st.Save()
}

// sourceFlags are the generator parameters shared by the offline commands.
type sourceFlags struct {
	hash    string
	counter int
	pool    int
	seedHex string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.hash, "hash", "sha256", "hash engine, one of "+strings.Join(hashes.Names(), ", "))
	cmd.Flags().IntVar(&f.counter, "counter", 32, "counter width in bits")
	cmd.Flags().IntVar(&f.pool, "pool", 32, "pool size in bytes")
	cmd.Flags().StringVar(&f.seedHex, "seed-hex", "", "hex seed written into the pool")
}

func (f *sourceFlags) build() (prng.Source, error) {
	src, err := hashes.NewSource(f.hash, f.counter, f.pool)
	if err != nil {
		return nil, err
	}
	seed, err := hex.DecodeString(f.seedHex)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	src.Seed(seed)
	return src, nil
}

func newSampleCmd() *cobra.Command {
	var (
		f      sourceFlags
		n      int
		format string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print one extraction of n bytes from a freshly seeded generator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n < 0 {
				return fmt.Errorf("n must not be negative")
			}
			src, err := f.build()
			if err != nil {
				return err
			}
			out := make([]byte, n)
			_, _ = src.Read(out)

			w := cmd.OutOrStdout()
			switch format {
			case "hex":
				_, err = fmt.Fprintln(w, hex.EncodeToString(out))
			case "bin":
				var sb strings.Builder
				for _, b := range stats.Unpack(out, n*8) {
					sb.WriteByte('0' + b)
				}
				_, err = fmt.Fprintln(w, sb.String())
			case "raw":
				_, err = w.Write(out)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&n, "n", 32, "number of bytes")
	cmd.Flags().StringVar(&format, "format", "hex", "output format: hex, bin or raw")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var (
		f    sourceFlags
		bits int
		full bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Run the quality report over generator output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bits <= 0 {
				return fmt.Errorf("bits must be positive")
			}
			src, err := f.build()
			if err != nil {
				return err
			}
			data := make([]byte, (bits+7)/8)
			_, _ = src.Read(data)
			seq := stats.Unpack(data, bits)
			rows := stats.Report(seq)
			if full {
				rows = stats.FullReport(seq)
			}

			w := cmd.OutOrStdout()
			for _, row := range rows {
				if row.Status == stats.StatusError {
					fmt.Fprintf(w, "%-36s %-6s %s\n", row.Name, row.Status, row.Err)
					continue
				}
				fmt.Fprintf(w, "%-36s %-6s %s\n", row.Name, row.Status, row.Result.PValues())
			}
			if !stats.AllPassed(rows) {
				return errors.New("quality report did not pass")
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&bits, "bits", 100_000, "number of output bits")
	cmd.Flags().BoolVar(&full, "full", false, "also run the tests that need long sequences")
	return cmd
}
