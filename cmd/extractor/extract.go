package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/newsletter-extractor/internal/api"
	"github.com/JakeFAU/newsletter-extractor/internal/pipeline"
)

type extractFlags struct {
	baseURL       string
	plainText     bool
	fetchArticles bool
	fetchTimeout  time.Duration
}

func newExtractCmd() *cobra.Command {
	var flags extractFlags
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extracts articles from a newsletter file (or stdin) and prints JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args, flags)
		},
	}
	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "base URL for resolving relative links")
	cmd.Flags().BoolVar(&flags.plainText, "text", false, "treat the input as a plain-text newsletter")
	cmd.Flags().BoolVar(&flags.fetchArticles, "fetch", false, "fetch every linked article")
	cmd.Flags().DurationVar(&flags.fetchTimeout, "fetch-timeout", 0, "per-tier fetch timeout (default from config)")
	return cmd
}

func runExtract(cmd *cobra.Command, args []string, flags extractFlags) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close() //nolint:errcheck // read-only
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	opts := a.apiOptions()
	fetch := opts.FetchDefaults
	if flags.fetchTimeout > 0 {
		fetch.Timeout = flags.fetchTimeout
	}
	req := pipeline.Request{
		BaseURL:       flags.baseURL,
		FetchArticles: flags.fetchArticles,
		Fetch:         fetch,
		FetchBudget:   opts.FetchBudget,
	}
	if flags.plainText {
		req.Text = string(raw)
	} else {
		req.HTML = string(raw)
	}

	result, err := a.pipeline.Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(api.NewExtractResponse(result)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
