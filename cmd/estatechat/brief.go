package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/estatechat/chatsync/pkg/api"
	"github.com/estatechat/chatsync/pkg/brief"
)

func newBriefCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Inspect and submit property briefs",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <brief-id>",
			Short: "Show a brief and its completeness",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr := brief.NewManager(newAPIClient())
				b, err := mgr.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printBrief(cmd.OutOrStdout(), b)
				return nil
			},
		},
		&cobra.Command{
			Use:   "submit <brief-id>",
			Short: "Submit a brief for processing",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				mgr := brief.NewManager(newAPIClient())
				if _, err := mgr.Load(cmd.Context(), args[0]); err != nil {
					return err
				}

				b, err := mgr.Submit(cmd.Context())
				var incomplete *brief.IncompleteError
				if errors.As(err, &incomplete) {
					cmd.Println("brief is not ready for submission:")
					for _, m := range incomplete.Missing {
						cmd.Println("  - " + m)
					}
					return errors.New("brief incomplete")
				}
				if err != nil {
					return err
				}

				cmd.Printf("brief %s submitted (lead score %.0f)\n", b.ID, brief.LeadScore(b))
				return nil
			},
		},
	)

	return cmd
}

func newAPIClient() *api.Client {
	return api.NewClient(
		viper.GetString("base-url"),
		api.WithTimeout(viper.GetDuration("timeout")),
	)
}

func printBrief(w io.Writer, b *api.Brief) {
	fmt.Fprintf(w, "brief %s (%s, %s)\n", b.ID, b.PropertyType, b.Status)
	if b.Location != "" {
		fmt.Fprintf(w, "  location: %s\n", b.Location)
	}
	if b.BudgetMin != nil || b.BudgetMax != nil {
		fmt.Fprintf(w, "  budget: %s - %s\n", formatYen(b.BudgetMin), formatYen(b.BudgetMax))
	}
	if b.Rooms != "" {
		fmt.Fprintf(w, "  rooms: %s\n", b.Rooms)
	}
	if b.AreaMin != nil {
		fmt.Fprintf(w, "  area: %.0f m²+\n", *b.AreaMin)
	}
	fmt.Fprintf(w, "  completeness: %.0f%%\n", brief.Completeness(b))
	if missing := brief.Validate(b); len(missing) > 0 {
		fmt.Fprintln(w, "  missing before submission:")
		for _, m := range missing {
			fmt.Fprintln(w, "    - "+m)
		}
	}
}

func formatYen(v *int) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("¥%d", *v)
}
