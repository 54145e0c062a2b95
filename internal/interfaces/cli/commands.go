package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TRAXX-Intelligence/pkg/client"
	"github.com/turtacn/TRAXX-Intelligence/pkg/errors"
	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// ─── ask ────────────────────────────────────────────────────────────────────

type answerView struct {
	*client.AskResponse
	verbose bool
}

func (a answerView) String() string {
	var sb strings.Builder
	sb.WriteString(a.Text)
	if len(a.ActionableItems) > 0 {
		sb.WriteString("\n\nActionable:")
		for _, it := range a.ActionableItems {
			fmt.Fprintf(&sb, "\n  - [%s %s] %s", it.Kind, it.ID, it.Label)
		}
	}
	if a.verbose {
		sb.WriteString("\n\nStages:")
		for _, s := range a.Stages {
			status := "ok"
			if !s.OK {
				status = "failed: " + s.Reason
			}
			fmt.Fprintf(&sb, "\n  %-16s %-8s %s", s.Stage, s.Duration, status)
		}
		if a.UsedFallback {
			sb.WriteString("\n  (answered locally)")
		}
	}
	return sb.String()
}

func (a answerView) TableHeaders() []string { return []string{"KIND", "ID", "LABEL"} }

func (a answerView) TableRows() [][]string {
	rows := make([][]string, 0, len(a.ActionableItems))
	for _, it := range a.ActionableItems {
		rows = append(rows, []string{it.Kind, it.ID, it.Label})
	}
	return rows
}

// NewAskCmd creates the ask command.
func NewAskCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the fleet",
		Example: `  traxx ask "Which kits are overdue for return?"
  traxx ask --session ops-1 "and which of those are in transit?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := fleetAPI(cmd)
			if err != nil {
				return err
			}
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return errors.New(errors.ErrCodeQueryEmpty, "question is required")
			}
			cliCtx.Logger.Debug("asking", logging.String("session_id", session))

			ans, err := cliCtx.Fleet.Ask(cmd.Context(), &client.AskRequest{Question: question, SessionID: session})
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}
			if strings.ToLower(cliCtx.OutputFormat) == "json" {
				return printJSON(cmd, ans)
			}
			return PrintResult(cmd, answerView{AskResponse: ans, verbose: cliCtx.Verbose})
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", "conversation session id (default: stateless)")
	return cmd
}

// ─── clusters ───────────────────────────────────────────────────────────────

type clusterTable []client.ClusterNode

func (t clusterTable) TableHeaders() []string {
	return []string{"ID", "KIND", "COUNT", "LAT", "LNG"}
}

func (t clusterTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, n := range t {
		rows = append(rows, []string{
			n.ID, n.Kind, strconv.Itoa(n.Count),
			strconv.FormatFloat(n.Location.Lat, 'f', 5, 64),
			strconv.FormatFloat(n.Location.Lng, 'f', 5, 64),
		})
	}
	return rows
}

// NewClustersCmd creates the clusters command.
func NewClustersCmd() *cobra.Command {
	req := &client.ClustersRequest{}
	cmd := &cobra.Command{
		Use:     "clusters",
		Short:   "Show the cluster layout of one map layer",
		Example: `  traxx clusters --kind tracker --south 24 --west -125 --north 50 --east -66 --zoom 4`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := common.ParseEntityKind(req.Kind)
			if err != nil {
				return err
			}
			req.Kind = string(kind)
			b := common.Bounds{South: req.South, West: req.West, North: req.North, East: req.East}
			if err := b.Validate(); err != nil {
				return err
			}
			cliCtx, err := fleetAPI(cmd)
			if err != nil {
				return err
			}
			nodes, err := cliCtx.Fleet.Clusters(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("clusters failed: %w", err)
			}
			return PrintResult(cmd, clusterTable(nodes))
		},
	}
	f := cmd.Flags()
	f.StringVarP(&req.Kind, "kind", "k", "tracker", "entity kind: tracker, facility, alert")
	f.Float64Var(&req.South, "south", 0, "south edge latitude")
	f.Float64Var(&req.West, "west", 0, "west edge longitude")
	f.Float64Var(&req.North, "north", 0, "north edge latitude")
	f.Float64Var(&req.East, "east", 0, "east edge longitude")
	f.Float64VarP(&req.Zoom, "zoom", "z", 4, "map zoom level")
	for _, name := range []string{"south", "west", "north", "east"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// ─── stats ──────────────────────────────────────────────────────────────────

type statsView map[string]interface{}

func (s statsView) TableHeaders() []string { return []string{"METRIC", "VALUE"} }

func (s statsView) TableRows() [][]string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprint(s[k])})
	}
	return rows
}

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show fleet totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := fleetAPI(cmd)
			if err != nil {
				return err
			}
			st, err := cliCtx.Fleet.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats failed: %w", err)
			}
			return PrintResult(cmd, statsView(st))
		},
	}
}

// ─── select / highlight ─────────────────────────────────────────────────────

// NewSelectCmd creates the select command.
func NewSelectCmd() *cobra.Command {
	var clearSel bool
	cmd := &cobra.Command{
		Use:   "select <kind> <id>",
		Short: "Focus the map on one entity, or clear the focus",
		Args: func(cmd *cobra.Command, args []string) error {
			if clearSel {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := fleetAPI(cmd)
			if err != nil {
				return err
			}
			if clearSel {
				if err := cliCtx.Fleet.ClearSelection(cmd.Context()); err != nil {
					return fmt.Errorf("clear selection failed: %w", err)
				}
				PrintSuccess(cmd, "selection cleared")
				return nil
			}
			kind, err := common.ParseEntityKind(args[0])
			if err != nil {
				return err
			}
			sel, err := cliCtx.Fleet.Select(cmd.Context(), string(kind), args[1])
			if err != nil {
				return fmt.Errorf("select failed: %w", err)
			}
			PrintSuccess(cmd, sel.State)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearSel, "clear", false, "clear the current selection")
	return cmd
}

// NewHighlightCmd creates the highlight command.
func NewHighlightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "highlight <kind> <id>...",
		Short: "Emphasize a set of entities on the map for a short time",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := common.ParseEntityKind(args[0])
			if err != nil {
				return err
			}
			cliCtx, err := fleetAPI(cmd)
			if err != nil {
				return err
			}
			if err := cliCtx.Fleet.Highlight(cmd.Context(), string(kind), args[1:]); err != nil {
				return fmt.Errorf("highlight failed: %w", err)
			}
			PrintSuccess(cmd, fmt.Sprintf("highlighted %d %s", len(args)-1, kind))
			return nil
		},
	}
}

// ─── version / serve ────────────────────────────────────────────────────────

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, fmt.Sprintf("traxx %s (commit: %s, built: %s)", Version, GitCommit, BuildDate))
		},
	}
}

// NewServeCmd creates the serve command.  It runs until SIGINT or SIGTERM.
func NewServeCmd(serve ServeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the fleet map and query service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cliCtx.Config, cliCtx.Logger)
		},
	}
}

//Personal.AI order the ending
