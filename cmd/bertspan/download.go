package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/katnastou/bert-span-classifier/internal/checkpoint"
)

type downloadOptions struct {
	baseURL string
	dir     string
	list    bool
}

func newDownloadCmd(st *cliState) *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:     "download [checkpoint-name]",
		Short:   "Download and unpack a pretrained checkpoint",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, st, &opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "base_url", "", "checkpoint archive base URL (overrides config)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "directory to unpack into (overrides config)")
	cmd.Flags().BoolVar(&opts.list, "list", false, "list known checkpoint names")

	return cmd
}

func runDownload(cmd *cobra.Command, st *cliState, opts *downloadOptions, args []string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("download: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("download: nil options")
	}

	if opts.list {
		for _, name := range checkpoint.KnownNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("download: missing checkpoint name (use --list to see known names)")
	}

	baseURL := strings.TrimSpace(opts.baseURL)
	if baseURL == "" {
		baseURL = st.cfg.Download.BaseURL
	}
	dir := strings.TrimSpace(opts.dir)
	if dir == "" {
		dir = st.cfg.Download.Dir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := checkpoint.NewClient(checkpoint.WithBaseURL(baseURL), checkpoint.WithDir(dir))
	root, err := client.Download(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), root)
	return nil
}
