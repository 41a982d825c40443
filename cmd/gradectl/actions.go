package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-grader/internal/action"
	"github.com/noah-isme/gema-grader/internal/dto"
)

func newActionsCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List registered actions or check a bindings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runActions(cmd)
		},
	}
	cmd.Flags().String("namespace", "", "only list actions in this namespace")
	cmd.Flags().Bool("json", false, "print the catalog as JSON")
	cmd.Flags().String("bindings", "", "TOML bindings file to check against the catalog")
	return cmd
}

func (a *cli) registry() (*action.Registry, error) {
	return action.NewDefaultRegistry(action.Environment{Logger: a.logger})
}

func (a *cli) runActions(cmd *cobra.Command) error {
	registry, err := a.registry()
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("bindings"); path != "" {
		return a.runBindingsCheck(cmd, registry, path)
	}

	namespace, _ := cmd.Flags().GetString("namespace")
	descs := registry.Describe(namespace)

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dto.NewActionDescriptionResponses(descs))
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tMODES\tREQUIRED\tSUMMARY")
	for _, desc := range descs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			desc.FullName(),
			joinModes(desc.CompatibleModes),
			strings.Join(desc.RequiredKeys(), ","),
			desc.Summary,
		)
	}
	return w.Flush()
}

func (a *cli) runBindingsCheck(cmd *cobra.Command, registry *action.Registry, path string) error {
	file, err := loadBindings(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, report := range checkBindings(registry, file) {
		switch {
		case report.Err != nil:
			failed++
			fmt.Fprintf(out, "FAIL %s %s: %v\n", report.Mode, report.Action, report.Err)
		case report.Warning != "":
			fmt.Fprintf(out, "WARN %s %s: %s\n", report.Mode, report.Action, report.Warning)
		default:
			fmt.Fprintf(out, "OK   %s %s\n", report.Mode, report.Action)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d binding(s) invalid", failed)
	}
	return nil
}

func joinModes(modes []action.Mode) string {
	parts := make([]string, 0, len(modes))
	for _, m := range modes {
		parts = append(parts, string(m))
	}
	return strings.Join(parts, ",")
}
