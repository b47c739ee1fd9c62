package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anthanhphan/go-resumable-transfer/internal/client"
	"github.com/anthanhphan/gosdk/logger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	ownerID   string
	stateDir  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InitLogger(&logger.Config{
		LogLevel:    logger.LevelInfo,
		LogEncoding: logger.EncodingJSON,
	})

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "transferctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transferctl",
		Short: "Resumable upload and download client",
		Long: `transferctl uploads files in chunks and downloads published artifacts.
Interrupted transfers resume from the state kept in --state-dir.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("TRANSFER_SERVER", "http://localhost:8080"), "Transfer server base URL")
	cmd.PersistentFlags().StringVar(&ownerID, "owner", os.Getenv("TRANSFER_OWNER"), "Owner ID sent with new uploads")
	cmd.PersistentFlags().StringVar(&stateDir, "state-dir", envOr("TRANSFER_STATE_DIR", defaultStateDir()), "Directory holding resume state")
	cmd.AddCommand(
		newUploadCmd(),
		newDownloadCmd(),
		newStatusCmd(),
		newCancelCmd(),
	)
	return cmd
}

func newUploadCmd() *cobra.Command {
	cfg := client.DefaultUploaderConfig()
	var chunkMiB int64
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file, resuming a previous attempt when possible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			fi, err := f.Stat()
			if err != nil {
				return err
			}

			state, err := client.OpenBadgerStateStore(stateDir)
			if err != nil {
				return err
			}
			defer func() { _ = state.Close() }()

			cfg.ChunkSize = chunkMiB * 1024 * 1024
			cfg.OnProgress = func(p client.Progress) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d chunks (%.1f%%)", p.Confirmed, p.Total, p.Percent)
			}

			tr, err := client.NewUploader(newAPI(), state, cfg).Start(cmd.Context(), path, f, fi.Size(), filepath.Base(path))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "session %s\n", tr.SessionID())

			result, err := tr.Wait()
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().Int64Var(&chunkMiB, "chunk-mib", cfg.ChunkSize/(1024*1024), "Chunk size in MiB")
	cmd.Flags().IntVarP(&cfg.Concurrency, "concurrency", "c", cfg.Concurrency, "Chunks uploaded in parallel")
	cmd.Flags().IntVar(&cfg.MaxAttempts, "attempts", cfg.MaxAttempts, "Attempts per chunk")
	cmd.Flags().DurationVar(&cfg.ChunkTimeout, "chunk-timeout", cfg.ChunkTimeout, "Timeout of one chunk request")
	cmd.Flags().StringVar(&cfg.ContentType, "content-type", "", "Content type recorded for the artifact")
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "Completion poll interval; 0 returns once every chunk is accepted")
	return cmd
}

func newDownloadCmd() *cobra.Command {
	cfg := client.DefaultDownloaderConfig()
	cmd := &cobra.Command{
		Use:   "download <artifact-ref> <dest>",
		Short: "Download an artifact, continuing a partial download when possible",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			state, err := client.OpenBadgerStateStore(stateDir)
			if err != nil {
				return err
			}
			defer func() { _ = state.Close() }()

			cfg.OnProgress = func(written, total int64) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d bytes", written, total)
			}
			result, err := client.NewDownloader(newAPI(), state, cfg).Download(cmd.Context(), args[0], dst)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().Int64Var(&cfg.SegmentSize, "segment-size", cfg.SegmentSize, "Bytes requested per range")
	cmd.Flags().Int64Var(&cfg.SmallThreshold, "small-threshold", cfg.SmallThreshold, "Artifacts below this size are fetched in one request")
	cmd.Flags().IntVar(&cfg.MaxAttempts, "attempts", cfg.MaxAttempts, "Attempts per segment")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the state of an upload session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			status, err := newAPI().Status(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		},
	}
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Cancel an upload session and drop its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			msg, err := newAPI().Cancel(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, msg)
		},
	}
}

func newAPI() *client.API {
	var opts []client.APIOption
	if ownerID != "" {
		opts = append(opts, client.WithOwnerID(ownerID))
	}
	return client.NewAPI(serverURL, opts...)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "transferctl")
	}
	return ".transferctl"
}
