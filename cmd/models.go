/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/longkey1/lome/internal/lome/catalog"
	"github.com/longkey1/lome/internal/openrouter"
	"github.com/spf13/cobra"
)

var (
	listRemote  bool
	showDetails bool
)

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models",
	Long: `List the models of the catalog: the built-in models merged with catalog_file.
With --remote, fetches the full model list from OpenRouter instead.

The aliases "strongest" and "value" can be used wherever a model is expected.

Example:
  lome models           # List catalog models
  lome models --details # Include context length, pricing and capabilities
  lome models --remote  # List every model OpenRouter offers`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		if listRemote {
			logger.Debug("listing remote models", "base_url", cfg.GetBaseURL())
			models, err := openrouter.NewClient(cfg).ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list models: %w", err)
			}
			if len(models) == 0 {
				return fmt.Errorf("no models returned from API")
			}

			fmt.Fprintln(w, "MODEL\tCONTEXT\tINPUT/1K\tOUTPUT/1K\tNAME")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					m.ID,
					catalog.FormatContextLength(m.ContextLength),
					remotePrice(m.Pricing.Prompt),
					remotePrice(m.Pricing.Completion),
					m.Name,
				)
			}
			return nil
		}

		cat, err := catalog.Load(cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}

		if showDetails {
			fmt.Fprintln(w, "MODEL\tDEFAULT\tCONTEXT\tINPUT/1K\tOUTPUT/1K\tCAPABILITIES")
		} else {
			fmt.Fprintln(w, "MODEL\tDEFAULT\tDESCRIPTION")
		}
		for _, info := range cat.Infos(cfg.Model) {
			defaultMark := ""
			if info.IsDefault {
				defaultMark = "Yes"
			}
			if !showDetails {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, defaultMark, info.Description)
				continue
			}

			m, _ := cat.Find(info.ID)
			caps := make([]string, 0, len(m.Capabilities))
			for _, c := range m.Capabilities {
				caps = append(caps, string(c))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				m.ID,
				defaultMark,
				catalog.FormatContextLength(m.ContextLength),
				catalog.FormatPricePer1k(m.PricePerInputToken),
				catalog.FormatPricePer1k(m.PricePerOutputToken),
				strings.Join(caps, ", "),
			)
		}

		w.Flush()
		fmt.Printf("\nQuick picks: strongest = %s, value = %s\n", catalog.StrongestModelID, catalog.ValueModelID)
		fmt.Printf("Use a model with: lome chat --model <model> [message]\n")
		return nil
	},
}

// remotePrice formats OpenRouter's per-token price string
func remotePrice(perToken string) string {
	price, err := strconv.ParseFloat(perToken, 64)
	if err != nil {
		return "-"
	}
	return catalog.FormatPricePer1k(price)
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().BoolVar(&listRemote, "remote", false, "Fetch the model list from OpenRouter")
	modelsCmd.Flags().BoolVarP(&showDetails, "details", "d", false, "Show context length, pricing and capabilities")
}
