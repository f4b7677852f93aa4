package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scopeguard/pricing-cli/internal/model"
	"github.com/scopeguard/pricing-cli/internal/store"
)

var requestsCmd = &cobra.Command{
	Use:   "requests",
	Short: "Inspect analyzed change requests",
	Long:  "Commands for listing and viewing change requests and recording price overrides.",
}

// -- requests list --

var requestsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List change requests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RequestFilter{
			ProjectID: project,
			Status:    model.RequestStatus(status),
			Limit:     limit,
		}

		requests, err := st.ListRequests(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "requests list")
		}

		if len(requests) == 0 {
			fmt.Fprintln(os.Stderr, "No requests found.")
			return nil
		}

		formatRequestsList(os.Stdout, requests)
		return nil
	},
}

// -- requests show --

var requestsShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show a request with its full analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		req, err := st.GetRequest(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "requests show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(req)
	},
}

// -- requests override --

var requestsOverrideCmd = &cobra.Command{
	Use:   "override <request-id>",
	Short: "Record a freelancer price override on a request",
	Long:  "Overrides the AI-suggested price. Overrides beyond a rounding delta feed the pricing stage as precedent on later requests for the same project.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		price, _ := cmd.Flags().GetFloat64("price")
		reason, _ := cmd.Flags().GetString("reason")
		if price <= 0 {
			return eris.New("--price must be positive")
		}

		if err := st.RecordPriceOverride(ctx, args[0], price, reason); err != nil {
			return eris.Wrap(err, "requests override")
		}

		fmt.Fprintf(os.Stdout, "Quoted price set to %.2f on %s\n", price, truncateID(args[0]))
		return nil
	},
}

// -- requests approve / decline --

var requestsApproveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a quote and send it on for client approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRequestStatus(cmd, args[0], model.StatusPendingClientApproval,
			"Request %s approved; quote is awaiting client approval\n")
	},
}

var requestsDeclineCmd = &cobra.Command{
	Use:   "decline <request-id>",
	Short: "Decline a change request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRequestStatus(cmd, args[0], model.StatusDeclined,
			"Request %s declined\n")
	},
}

func setRequestStatus(cmd *cobra.Command, id string, status model.RequestStatus, msg string) error {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	if err := st.UpdateRequestStatus(ctx, id, status); err != nil {
		return eris.Wrapf(err, "requests %s", status)
	}

	fmt.Fprintf(os.Stdout, msg, truncateID(id))
	return nil
}

func init() {
	requestsListCmd.Flags().String("project", "", "filter by project ID")
	requestsListCmd.Flags().String("status", "", "filter by status (analyzing, pending_freelancer_approval, ...)")
	requestsListCmd.Flags().Int("limit", 50, "max number of requests to display")

	requestsOverrideCmd.Flags().Float64("price", 0, "quoted price to record (required)")
	requestsOverrideCmd.Flags().String("reason", "", "why the AI price was changed")
	_ = requestsOverrideCmd.MarkFlagRequired("price")

	requestsCmd.AddCommand(requestsListCmd)
	requestsCmd.AddCommand(requestsShowCmd)
	requestsCmd.AddCommand(requestsOverrideCmd)
	requestsCmd.AddCommand(requestsApproveCmd)
	requestsCmd.AddCommand(requestsDeclineCmd)
	rootCmd.AddCommand(requestsCmd)
}

// formatRequestsList writes a tabular list of requests to w.
func formatRequestsList(out io.Writer, requests []model.Request) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROJECT\tCLIENT\tSTATUS\tPRICE\tHOURS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t------\t-----\t-----\t-------")

	for _, r := range requests {
		price := ""
		if r.SuggestedPrice > 0 {
			price = fmt.Sprintf("%.2f", r.SuggestedPrice)
		}
		if r.FreelancerModifiedPrice {
			price = fmt.Sprintf("%.2f*", r.QuotedPrice)
		}

		hours := ""
		if r.EstimatedHours > 0 {
			hours = fmt.Sprintf("%.1f", r.EstimatedHours)
		}

		client := r.ClientName
		if len(client) > 24 {
			client = client[:21] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			truncateID(r.ProjectID),
			client,
			r.Status,
			price,
			hours,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
