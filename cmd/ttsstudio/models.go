package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/tmc/ttsstudio/api"
)

func newModelsCmd() *cobra.Command {
	var filter string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List speech-capable Gemini models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			log.SetOutput(io.Discard)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			models, err := newModelLister(cfg).ListTTSModels(ctx, filter)
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %d models matching filter %q\n", len(models), filterLabel(filter))
			for _, m := range models {
				if m.DisplayName != "" {
					fmt.Fprintf(out, "%s\t%s\n", m.ID(), m.DisplayName)
				} else {
					fmt.Fprintln(out, m.ID())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", api.DefaultModelFilter, `Case-insensitive name filter ("*" lists every model)`)
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	return cmd
}

func filterLabel(filter string) string {
	if filter == "" {
		return api.DefaultModelFilter
	}
	return filter
}
