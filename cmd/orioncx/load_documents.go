package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hrygo/orioncx/server"
	"github.com/hrygo/orioncx/server/ai"
	"github.com/hrygo/orioncx/server/retrieval"
)

var loadDocumentsCmd = &cobra.Command{
	Use:   "load-documents",
	Short: "Embed .txt and .md files into the retrieval knowledge base",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		ctx := cmd.Context()

		p, err := loadProfile()
		if err != nil {
			return err
		}
		if p.Driver != "postgres" {
			return fmt.Errorf("load-documents requires the postgres driver, got %q", p.Driver)
		}
		if !p.IsAIEnabled() {
			return fmt.Errorf("model provider key is required, set ORIONCX_OPENAI_API_KEY")
		}

		s, err := openStore(ctx, p)
		if err != nil {
			return err
		}
		defer s.Close()

		cfg := server.ProviderConfig(p)
		provider, err := ai.NewProvider(cfg, nil)
		if err != nil {
			return err
		}

		ok := color.New(color.FgGreen).SprintFunc()
		warn := color.New(color.FgYellow).SprintFunc()
		bad := color.New(color.FgRed, color.Bold).SprintFunc()
		out := cmd.OutOrStdout()

		loader := retrieval.NewLoader(provider, s, cfg.EmbeddingModel).WithConcurrency(concurrency)
		loader.OnFile = func(ev retrieval.LoadEvent) {
			switch {
			case ev.Err != nil:
				fmt.Fprintf(out, "%s %s: %v\n", bad("failed"), ev.File, ev.Err)
			case ev.Skipped:
				fmt.Fprintf(out, "%s %s (empty)\n", warn("skipped"), ev.File)
			default:
				fmt.Fprintf(out, "%s %s (%d chunks)\n", ok("loaded"), ev.File, ev.Chunks)
			}
		}

		result, err := loader.LoadDirectory(ctx, dir)
		if result != nil {
			fmt.Fprintf(out, "\n%d files, %d chunks stored, %d skipped, %d failed\n",
				result.Files, result.Chunks, result.Skipped, result.Failed)
		}
		return err
	},
}

func init() {
	loadDocumentsCmd.Flags().String("dir", "documents", "directory containing .txt and .md files")
	loadDocumentsCmd.Flags().Int("concurrency", retrieval.DefaultLoadConcurrency, "files embedded at once")
}
