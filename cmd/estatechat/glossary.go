package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/estatechat/chatsync/pkg/api"
	"github.com/estatechat/chatsync/pkg/glossary"
)

func newGlossaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glossary <query>",
		Short: "Look up real-estate terms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(
				viper.GetString("base-url"),
				api.WithTimeout(viper.GetDuration("timeout")),
			)
			searcher := glossary.NewSearcher(client)

			result, err := searcher.Search(cmd.Context(), strings.Join(args, " "), viper.GetString("language"))
			if err != nil {
				return err
			}

			if result.Total == 0 {
				cmd.Printf("no glossary entries for %q\n", result.Query)
				return nil
			}

			termStyle := lipgloss.NewStyle().Bold(true)
			mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7086"))

			for _, term := range result.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", termStyle.Render(term.Term), term.Translation)
				if term.Explanation != "" {
					fmt.Fprintln(cmd.OutOrStdout(), "  "+term.Explanation)
				}
				if term.Category != "" {
					fmt.Fprintln(cmd.OutOrStdout(), "  "+mutedStyle.Render(term.Category))
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}

			return nil
		},
	}

	return cmd
}
