package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/archive"
	"github.com/noah-isme/gema-grader/internal/handin"
	"github.com/noah-isme/gema-grader/internal/inclusion"
)

func newUnarchiveCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unarchive",
		Short: "Extract one handin archive through an inclusion filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runUnarchive(cmd)
		},
	}
	cmd.Flags().String("archive", "", "handin archive (zip, jar, tar, tar.gz)")
	cmd.Flags().String("dest", "", "destination directory (default <workspace.root>/gradectl/<archive name>)")
	cmd.Flags().String("filter", "", "inclusion filter as JSON, or @file to read it from a file")
	_ = cmd.MarkFlagRequired("archive")
	return cmd
}

func (a *cli) runUnarchive(cmd *cobra.Command) error {
	archivePath, _ := cmd.Flags().GetString("archive")
	dest, _ := cmd.Flags().GetString("dest")
	rawFilter, _ := cmd.Flags().GetString("filter")

	spec, err := readFilter(rawFilter)
	if err != nil {
		return err
	}

	if dest == "" {
		cfg, err := a.config()
		if err != nil {
			return err
		}
		dest = defaultDest(cfg.WorkspaceRoot, archivePath)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	missing, err := handin.ExtractFiltered(archive.NewFormatAccessor(a.logger), archivePath, dest, spec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(missing) > 0 {
		a.logger.Warn().Str("archive", archivePath).Strs("missing", missing).Msg("filter not satisfied, extracted everything")
		fmt.Fprintf(out, "extracted all of %s into %s\nmissing:\n", archivePath, dest)
		for _, line := range missing {
			fmt.Fprintf(out, "  %s\n", line)
		}
		return nil
	}

	fmt.Fprintf(out, "extracted %s into %s\n", archivePath, dest)
	return nil
}

func readFilter(raw string) (inclusion.Spec, error) {
	raw = strings.TrimSpace(raw)
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return inclusion.Spec{}, fmt.Errorf("read filter: %w", err)
		}
		return inclusion.Parse(data)
	}
	return inclusion.Parse([]byte(raw))
}
