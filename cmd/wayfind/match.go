package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wayfind-dev/wayfind/internal/config"
	"github.com/wayfind-dev/wayfind/pkg/history"
	"github.com/wayfind-dev/wayfind/pkg/matcher"
	"github.com/wayfind-dev/wayfind/pkg/router"
)

func matchCmd() *cobra.Command {
	var (
		dir      string
		asJSON   bool
		showMeta bool
	)

	cmd := &cobra.Command{
		Use:   "match PATH [PATH...]",
		Short: "Resolve paths against the route table",
		Long: `Resolve one or more location strings against the routes declared in
wayfind.json and print the matched route, parameters, and chain.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dir)
			if err != nil {
				return err
			}
			r, err := buildRouter(cfg)
			if err != nil {
				return err
			}
			defer r.Close()

			failed := false
			for _, raw := range args {
				loc, err := r.Resolve(raw)
				if err != nil {
					failed = true
					if errors.Is(err, matcher.ErrNoMatch) {
						errorMsg("%s: no matching route", raw)
					} else {
						errorMsg("%s: %s", raw, err)
					}
					continue
				}
				if asJSON {
					printJSON(loc, showMeta)
				} else {
					printMatch(raw, loc, showMeta)
				}
			}
			if failed {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Project directory (default: nearest wayfind.json)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&showMeta, "meta", false, "Include route metadata")

	return cmd
}

// buildRouter constructs a router over an in-memory history with the
// config's routes registered.
func buildRouter(cfg *config.Config) (*router.Router, error) {
	adapter, err := history.NewMemory("/")
	if err != nil {
		return nil, err
	}
	r := router.New(adapter, cfg.RouterOptions()...)
	if err := cfg.Register(r); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func printMatch(raw string, loc *matcher.ResolvedLocation, showMeta bool) {
	fmt.Printf("%s\n", raw)
	fmt.Printf("  route:  %s\n", loc.Record.Path)
	if loc.Record.Name != "" {
		fmt.Printf("  name:   %s\n", loc.Record.Name)
	}
	if len(loc.Params) > 0 {
		fmt.Printf("  params:\n")
		for k, v := range loc.Params {
			fmt.Printf("    %s = %s\n", k, v)
		}
	}
	if len(loc.Chain) > 1 {
		fmt.Printf("  chain:\n")
		for _, rec := range loc.Chain {
			fmt.Printf("    %s\n", rec.Path)
		}
	}
	if showMeta && len(loc.Record.Meta) > 0 {
		fmt.Printf("  meta:\n")
		for k, v := range loc.Record.Meta {
			fmt.Printf("    %s = %v\n", k, v)
		}
	}
}

func printJSON(loc *matcher.ResolvedLocation, showMeta bool) {
	out := map[string]any{
		"path":     loc.Path,
		"fullPath": loc.FullPath,
		"route":    loc.Record.Path,
		"params":   loc.Params,
	}
	if loc.Record.Name != "" {
		out["name"] = loc.Record.Name
	}
	if showMeta && len(loc.Record.Meta) > 0 {
		out["meta"] = loc.Record.Meta
	}
	chain := make([]string, len(loc.Chain))
	for i, rec := range loc.Chain {
		chain[i] = rec.Path
	}
	out["chain"] = chain

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
