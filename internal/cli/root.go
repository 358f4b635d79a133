// Package cli implements ticketctl, a command line front end over the same
// ticket engine the HTTP service runs.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-service/internal/bootstrap"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// EngineFactory builds the engine a command runs against.
type EngineFactory func(ctx context.Context) (*bootstrap.Engine, error)

type runner struct {
	factory EngineFactory
	engine  *bootstrap.Engine
	pretty  bool
}

// NewRootCommand assembles ticketctl. The engine is built once, on the first
// command that needs it.
func NewRootCommand(factory EngineFactory) *cobra.Command {
	r := &runner{factory: factory}
	root := &cobra.Command{
		Use:   "ticketctl",
		Short: "Query and update helpdesk tickets",
		Long: `ticketctl lists, searches, queries and updates helpdesk tickets and
prints cached analytics reports. Output is JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			r.engine.Close()
		},
	}
	root.PersistentFlags().BoolVar(&r.pretty, "pretty", true, "Indent JSON output")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		r.listCommand(),
		r.searchCommand(),
		r.getCommand(),
		r.updateCommand(),
		r.queryCommand(),
		r.reportCommand(),
	)
	return root
}

func (r *runner) load(ctx context.Context) (*bootstrap.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}
	engine, err := r.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("start ticket engine: %w", err)
	}
	r.engine = engine
	return engine, nil
}

func (r *runner) print(cmd *cobra.Command, v any) error {
	return writeJSON(cmd.OutOrStdout(), v, r.pretty)
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	var (
		raw []byte
		err error
	)
	if pretty {
		raw, err = json.MarshalIndent(v, "", "  ")
	} else {
		raw, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

// WriteError renders err in the same envelope the HTTP API uses.
func WriteError(w io.Writer, err error) {
	domainErr := apperrors.ToDomainError(err)
	body := map[string]any{"code": domainErr.Code, "message": domainErr.Message}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	if domainErr.Code == apperrors.CodeInternalError && domainErr.Err != nil {
		body["message"] = domainErr.Err.Error()
	}
	_ = writeJSON(w, map[string]any{"error": body}, true)
}
