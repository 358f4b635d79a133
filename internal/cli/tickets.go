package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func (r *runner) listCommand() *cobra.Command {
	var (
		filters []string
		sort    []string
		skip    int
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets matching filters",
		Example: `  ticketctl list --filter status=open --filter site=2 --sort=-Created_Date
  ticketctl list --filter priority=high,critical --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := parseAssignments(filters, false)
			if err != nil {
				return err
			}
			engine, err := r.load(cmd.Context())
			if err != nil {
				return err
			}
			tickets, total, err := engine.Tickets.ListTickets(cmd.Context(), parsed, sort, skip, limit)
			if err != nil {
				return err
			}
			offset, size := query.NormalizePage(skip, limit)
			return r.print(cmd, dto.NewTicketListResponse(tickets, total, offset, size))
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter as key=value; comma separated values match any")
	cmd.Flags().StringSliceVar(&sort, "sort", nil, "Sort keys, prefix with - for descending")
	cmd.Flags().IntVar(&skip, "skip", 0, "Rows to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (default 10, max 500)")
	return cmd
}

func (r *runner) searchCommand() *cobra.Command {
	var (
		params  query.SearchParams
		days    int
		siteID  int
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Free-text ticket search",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				params.Text = args[0]
			}
			if cmd.Flags().Changed("days") {
				params.Days = &days
			}
			if cmd.Flags().Changed("site") {
				params.SiteID = &siteID
			}
			parsed, err := parseAssignments(filters, false)
			if err != nil {
				return err
			}
			if len(parsed) > 0 {
				params.Filters = parsed
			}
			engine, err := r.load(cmd.Context())
			if err != nil {
				return err
			}
			tickets, total, err := engine.Tickets.SearchTickets(cmd.Context(), params)
			if err != nil {
				return err
			}
			offset, size := query.NormalizePage(params.Skip, params.Limit)
			return r.print(cmd, dto.NewTicketListResponse(tickets, total, offset, size))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&params.User, "user", "", "Contact name or email")
	flags.IntVar(&days, "days", 0, "Only tickets created in the last N days")
	flags.IntVar(&siteID, "site", 0, "Site id")
	flags.StringVar(&params.AssignedTo, "assigned-to", "", "Assignee email")
	flags.BoolVar(&params.UnassignedOnly, "unassigned", false, "Only unassigned tickets")
	flags.StringVar(&params.Order, "order", "newest", "newest or oldest")
	flags.StringSliceVar(&params.Sort, "sort", nil, "Sort keys, prefix with - for descending")
	flags.StringArrayVarP(&filters, "filter", "f", nil, "Semantic filter as key=value")
	flags.IntVar(&params.Skip, "skip", 0, "Rows to skip")
	flags.IntVar(&params.Limit, "limit", 0, "Page size")
	return cmd
}

func (r *runner) getCommand() *cobra.Command {
	var withThread bool
	cmd := &cobra.Command{
		Use:   "get <ticket-id>",
		Short: "Show one ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTicketID(args[0])
			if err != nil {
				return err
			}
			engine, err := r.load(cmd.Context())
			if err != nil {
				return err
			}
			ticket, err := engine.Tickets.GetTicket(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !withThread {
				return r.print(cmd, dto.NewTicketResponse(ticket))
			}
			msgs, err := engine.Tickets.ListMessages(cmd.Context(), id)
			if err != nil {
				return err
			}
			history, err := engine.Tickets.ListHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			return r.print(cmd, map[string]any{
				"ticket":   dto.NewTicketResponse(ticket),
				"messages": dto.NewMessageResponses(msgs),
				"history":  dto.NewHistoryResponses(history),
			})
		},
	}
	cmd.Flags().BoolVar(&withThread, "thread", false, "Include messages and change history")
	return cmd
}

func (r *runner) updateCommand() *cobra.Command {
	var (
		sets     []string
		expected int
		actor    string
	)
	cmd := &cobra.Command{
		Use:   "update <ticket-id>",
		Short: "Update ticket fields",
		Example: `  ticketctl update 42 --set status=closed --set "resolution=Replaced toner"
  ticketctl update 42 --set assignee=null --expect-version 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTicketID(args[0])
			if err != nil {
				return err
			}
			changes, err := parseAssignments(sets, true)
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				return apperrors.NewValidationError("at least one --set is required", nil)
			}
			opts := service.UpdateOptions{ModifiedBy: actor}
			if cmd.Flags().Changed("expect-version") {
				opts.ExpectedVersion = &expected
			}
			engine, err := r.load(cmd.Context())
			if err != nil {
				return err
			}
			ticket, err := engine.Tickets.UpdateTicket(cmd.Context(), id, changes, opts)
			if err != nil {
				return err
			}
			return r.print(cmd, dto.NewTicketResponse(ticket))
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field assignment as key=value; value null clears the field")
	cmd.Flags().IntVar(&expected, "expect-version", 0, "Fail unless the ticket is still at this version")
	cmd.Flags().StringVar(&actor, "actor", "", "Recorded as the modifier (default system)")
	return cmd
}

func (r *runner) queryCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run an advanced query given as JSON",
		Example: `  echo '{"status_filter":["open"],"include_messages":true}' | ticketctl query
  ticketctl query --file query.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var q query.AdvancedQuery
			if err := json.NewDecoder(in).Decode(&q); err != nil {
				return apperrors.NewValidationError("invalid query JSON", map[string]any{"reason": err.Error()})
			}
			engine, err := r.load(cmd.Context())
			if err != nil {
				return err
			}
			result, err := engine.Advanced.QueryAdvanced(cmd.Context(), q)
			if err != nil {
				return err
			}
			return r.print(cmd, dto.NewQueryResultResponse(result))
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "Query file, - reads stdin")
	return cmd
}

func parseTicketID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"ticket_id": raw})
	}
	return id, nil
}

// parseAssignments turns key=value pairs into a field map. For filters,
// comma separated values become lists; for updates the literal null clears
// a field.
func parseAssignments(pairs []string, update bool) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, apperrors.NewValidationError(fmt.Sprintf("expected key=value, got %q", pair), nil)
		}
		switch {
		case update && value == "null":
			out[key] = nil
		case update:
			out[key] = value
		default:
			parts := strings.Split(value, ",")
			if len(parts) == 1 {
				out[key] = strings.TrimSpace(value)
				continue
			}
			items := make([]any, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					items = append(items, p)
				}
			}
			out[key] = items
		}
	}
	return out, nil
}
