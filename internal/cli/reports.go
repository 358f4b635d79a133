package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/bootstrap"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type reportArgs struct {
	days  int
	email string
}

type reportFunc func(cmd *cobra.Command, engine *bootstrap.Engine, args reportArgs) (any, error)

var reports = map[string]reportFunc{
	"tickets-by-status": func(cmd *cobra.Command, e *bootstrap.Engine, _ reportArgs) (any, error) {
		b, err := e.Analytics.TicketsByStatus(cmd.Context())
		return dto.NewCountBuckets(b), err
	},
	"open-by-site": func(cmd *cobra.Command, e *bootstrap.Engine, _ reportArgs) (any, error) {
		b, err := e.Analytics.OpenBySite(cmd.Context())
		return dto.NewCountBuckets(b), err
	},
	"open-by-assignee": func(cmd *cobra.Command, e *bootstrap.Engine, _ reportArgs) (any, error) {
		b, err := e.Analytics.OpenByAssignee(cmd.Context())
		return dto.NewCountBuckets(b), err
	},
	"waiting-on-user": func(cmd *cobra.Command, e *bootstrap.Engine, _ reportArgs) (any, error) {
		b, err := e.Analytics.WaitingOnUser(cmd.Context())
		return dto.NewCountBuckets(b), err
	},
	"sla-breaches": func(cmd *cobra.Command, e *bootstrap.Engine, a reportArgs) (any, error) {
		r, err := e.Analytics.SLABreaches(cmd.Context(), a.days)
		if err != nil {
			return nil, err
		}
		return dto.NewSLAReport(r), nil
	},
	"trend": func(cmd *cobra.Command, e *bootstrap.Engine, a reportArgs) (any, error) {
		p, err := e.Analytics.Trend(cmd.Context(), a.days)
		return dto.NewTrend(p), err
	},
	"staff": func(cmd *cobra.Command, e *bootstrap.Engine, a reportArgs) (any, error) {
		r, err := e.Analytics.Staff(cmd.Context(), a.email)
		if err != nil {
			return nil, err
		}
		return dto.NewStaffReport(r), nil
	},
}

func reportNames() []string {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *runner) reportCommand() *cobra.Command {
	var args reportArgs
	cmd := &cobra.Command{
		Use:       "report <name>",
		Short:     "Print an analytics report",
		Long:      fmt.Sprintf("Print an analytics report. Reports: %s.", strings.Join(reportNames(), ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: reportNames(),
		RunE: func(cmd *cobra.Command, positional []string) error {
			run, ok := reports[positional[0]]
			if !ok {
				return apperrors.NewValidationError("unknown report", map[string]any{
					"report":    positional[0],
					"available": reportNames(),
				})
			}
			engine, err := r.load(cmd.Context())
			if err != nil {
				return err
			}
			out, err := run(cmd, engine, args)
			if err != nil {
				return err
			}
			return r.print(cmd, out)
		},
	}
	cmd.Flags().IntVar(&args.days, "days", 0, "Window in days for sla-breaches and trend")
	cmd.Flags().StringVar(&args.email, "email", "", "Assignee email for the staff report")
	return cmd
}
