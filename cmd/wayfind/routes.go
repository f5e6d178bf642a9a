package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func routesCmd() *cobra.Command {
	var (
		dir    string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the registered route table",
		Long:  `List the routes declared in wayfind.json in registration order.`,
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

			records := r.Routes()
			if asJSON {
				type row struct {
					ID     uint64 `json:"id"`
					Path   string `json:"path"`
					Name   string `json:"name,omitempty"`
					Parent uint64 `json:"parent,omitempty"`
				}
				rows := make([]row, len(records))
				for i, rec := range records {
					rows[i] = row{
						ID:     uint64(rec.ID),
						Path:   rec.Path,
						Name:   rec.Name,
						Parent: uint64(rec.Parent),
					}
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPATH\tNAME\tPARENT")
			for _, rec := range records {
				parent := ""
				if p, ok := r.Registry().Record(rec.Parent); ok {
					parent = p.Path
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.ID, rec.Path, rec.Name, parent)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Project directory (default: nearest wayfind.json)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print routes as JSON")

	return cmd
}
