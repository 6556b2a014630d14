package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/annstore"
)

func newUpsertCmd() *cobra.Command {
	var itemsPath string

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Insert or replace items in an index",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := openItems(itemsPath)
			if err != nil {
				return err
			}
			return withManager(cmd.Context(), func(m *annstore.Manager, key annstore.IndexKey) error {
				n, err := m.AddOrUpdate(cmd.Context(), key, key.Dim, items)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"applied": n, "dropped": len(items) - n})
			})
		},
	}
	cmd.Flags().StringVar(&itemsPath, "items", "-", "JSONL file with items, - for stdin")
	return cmd
}

func newRebuildCmd() *cobra.Command {
	var (
		itemsPath string
		capacity  int
		params    annstore.HNSWParams
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Replace an index with exactly the given items",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := openItems(itemsPath)
			if err != nil {
				return err
			}

			var opts []annstore.RebuildOption
			if params != (annstore.HNSWParams{}) {
				opts = append(opts, annstore.WithRebuildParams(params))
			}
			if capacity > 0 {
				opts = append(opts, annstore.WithRebuildCapacity(capacity))
			}

			return withManager(cmd.Context(), func(m *annstore.Manager, key annstore.IndexKey) error {
				n, err := m.Rebuild(cmd.Context(), key, key.Dim, items, opts...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"included": n})
			})
		},
	}
	cmd.Flags().StringVar(&itemsPath, "items", "-", "JSONL file with items, - for stdin")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "initial capacity (default max(1000, 2*count))")
	cmd.Flags().IntVar(&params.M, "m", 0, "neighbor fan-out")
	cmd.Flags().IntVar(&params.EFConstruction, "ef-construction", 0, "construction search breadth")
	cmd.Flags().IntVar(&params.EF, "ef", 0, "query search breadth")
	return cmd
}

type searchHit struct {
	Label      int64   `json:"label"`
	Distance   float32 `json:"distance"`
	Similarity float32 `json:"similarity"`
}

func newSearchCmd() *cobra.Command {
	var (
		vector string
		k      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print the k nearest labels to a query vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vector == "" {
				return errors.New("--vector is required")
			}
			q, err := parseVector(vector)
			if err != nil {
				return err
			}
			return withManager(cmd.Context(), func(m *annstore.Manager, key annstore.IndexKey) error {
				results, err := m.Search(cmd.Context(), key, key.Dim, q, k)
				if err != nil {
					return err
				}
				hits := make([]searchHit, len(results))
				for i, r := range results {
					hits[i] = searchHit{Label: r.Label, Distance: r.Distance, Similarity: r.Similarity()}
				}
				return printJSON(cmd.OutOrStdout(), hits)
			})
		},
	}
	cmd.Flags().StringVar(&vector, "vector", "", "comma-separated query vector")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "number of results")
	return cmd
}

func newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists",
		Short: "Report whether an index is persisted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *annstore.Manager, key annstore.IndexKey) error {
				ok, err := m.IndexExists(key)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]bool{"exists": ok})
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load an index and print its statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *annstore.Manager, key annstore.IndexKey) error {
				// A one-row search loads the index without changing it.
				probe := make([]float32, key.Dim)
				probe[0] = 1
				if _, err := m.Search(cmd.Context(), key, key.Dim, probe, 1); err != nil {
					return err
				}
				stats, ok := m.Stats(key)
				if !ok {
					return fmt.Errorf("index %s does not exist", key)
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	var labels string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove labels from an index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := parseLabels(labels)
			if err != nil {
				return err
			}
			return withManager(cmd.Context(), func(m *annstore.Manager, key annstore.IndexKey) error {
				n, err := m.Delete(cmd.Context(), key, ls)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int{"deleted": n})
			})
		},
	}
	cmd.Flags().StringVar(&labels, "labels", "", "comma-separated labels")
	return cmd
}

func newDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Delete an index and its files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *annstore.Manager, key annstore.IndexKey) error {
				return m.Drop(cmd.Context(), key)
			})
		},
	}
}
