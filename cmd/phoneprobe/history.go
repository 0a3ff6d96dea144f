package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/phoneprobe/internal/config"
	"github.com/nao1215/phoneprobe/internal/database"
	"github.com/nao1215/phoneprobe/internal/model"
	"github.com/nao1215/phoneprobe/internal/report"
)

// defaultHistoryLimit is the number of sessions listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored searches",
		Long: `History lists the searches stored in the history database, newest first.

Phone numbers are stored hashed; the list shows them masked. Use --target
with the full number to list the searches of one number.

Examples:
  # List the latest searches
  phoneprobe history

  # List every search of one number
  phoneprobe history --target "+55 11 98765-4321" --limit 0

  # Show one stored search as tables
  phoneprobe history show 0b6f9c3e-...

  # Compare the latest two Instagram searches of a number
  phoneprobe history compare 5511987654321`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.PersistentFlags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of searches to list (0 lists all)")
	cmd.Flags().String("target", "",
		"Only list the searches of this phone number")

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryCompareCmd())

	return cmd
}

// openHistory opens the existing history database. Reading commands never
// create one.
func openHistory(cmd *cobra.Command) (*database.HistoryDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return db, nil
}

// runHistoryCmd lists stored sessions.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	targetFlag, err := cmd.Flags().GetString("target")
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	var sessions []database.SessionMetadata
	if targetFlag != "" {
		sessions, err = db.FindByTarget(ctx, model.ParsePhoneNumber(targetFlag))
		if err == nil && limit > 0 && len(sessions) > limit {
			sessions = sessions[:limit]
		}
	} else {
		sessions, err = db.ListSessions(ctx, limit)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No searches found in the history.")
		fmt.Fprintln(out, "\nUse 'phoneprobe search <number>' to run one.")
		return nil
	}

	fmt.Fprintln(out, historyTable(sessions))
	fmt.Fprintln(out, "\nUse 'phoneprobe history show <id>' to see the profiles of a search.")
	return nil
}

// historyTable renders session metadata as a table.
func historyTable(sessions []database.SessionMetadata) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("History (%d)", len(sessions)))
	t.AppendHeader(table.Row{"ID", "Started", "Platform", "Target", "State", "Found", "Not found", "Blocked", "Errors"})
	for _, m := range sessions {
		state := m.State
		if m.Interrupted {
			state += " (interrupted)"
		}
		t.AppendRow(table.Row{
			m.ID,
			m.StartedAt.Local().Format(time.DateTime),
			m.Platform,
			m.TargetMasked,
			state,
			m.Summary.Found,
			m.Summary.NotFound,
			m.Summary.Blocked,
			m.Summary.TransportError,
		})
	}
	return t.Render()
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored search",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown instead of tables")
	cmd.Flags().BoolP("json", "j", false, "Output the stored session as JSON")
	return cmd
}

// runHistoryShowCmd prints one stored session.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if markdownOutput && jsonOutput {
		return errors.New("--markdown and --json are mutually exclusive")
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := db.GetSession(context.Background(), args[0])
	if err != nil {
		return err
	}
	return showSession(cmd.OutOrStdout(), s, markdownOutput, jsonOutput)
}

// showSession writes a stored session in the selected format.
func showSession(out io.Writer, s *model.SearchSession, markdownOutput, jsonOutput bool) error {
	switch {
	case jsonOutput:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(s)
	case markdownOutput:
		_, err := report.NewMarkdownWriter(out).Write(report.New(false, s))
		return err
	default:
		_, err := report.NewTableWriter(out, report.WithVerbose(true)).Write(report.New(false, s))
		return err
	}
}

func newHistoryCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <phone-number>",
		Short: "Compare the latest two searches of a number",
		Long: `Compare shows which profiles appeared or disappeared between the latest
two finished searches of a phone number on one platform, and which profile
fields changed.`,
		Args: cobra.ExactArgs(1),
		RunE: runHistoryCompareCmd,
	}
	cmd.Flags().StringP("platform", "p", config.DefaultPlatform, "Platform of the searches")
	cmd.Flags().BoolP("json", "j", false, "Output the comparison as JSON")
	return cmd
}

// runHistoryCompareCmd compares the latest two sessions of a number.
func runHistoryCompareCmd(cmd *cobra.Command, args []string) error {
	platformName, err := cmd.Flags().GetString("platform")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	target := model.ParsePhoneNumber(args[0])
	metas, err := db.FindByTarget(ctx, target)
	if err != nil {
		return err
	}

	var ids []string
	for _, m := range metas {
		if m.Platform == platformName && m.State == model.StateDone.String() {
			ids = append(ids, m.ID)
		}
		if len(ids) == 2 {
			break
		}
	}
	if len(ids) < 2 {
		return fmt.Errorf("at least 2 finished %s searches of %s are required for comparison (found %d)",
			platformName, target.Masked(), len(ids))
	}

	current, err := db.GetSession(ctx, ids[0])
	if err != nil {
		return err
	}
	previous, err := db.GetSession(ctx, ids[1])
	if err != nil {
		return err
	}

	result := compareSessions(previous, current)
	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), comparisonTable(result))
	return nil
}

// ComparisonResult holds the profile changes between two sessions.
type ComparisonResult struct {
	// Platform is the searched platform.
	Platform string `json:"platform"`

	// Target is the masked phone number.
	Target string `json:"target"`

	// PreviousSession and CurrentSession are the compared session IDs.
	PreviousSession string `json:"previousSession"`
	CurrentSession  string `json:"currentSession"`

	// PreviousStarted and CurrentStarted are the session start times.
	PreviousStarted time.Time `json:"previousStarted"`
	CurrentStarted  time.Time `json:"currentStarted"`

	// NewProfiles are candidates found only in the current session.
	NewProfiles []string `json:"newProfiles,omitempty"`

	// GoneProfiles are candidates found only in the previous session.
	GoneProfiles []string `json:"goneProfiles,omitempty"`

	// Changes lists field changes of profiles found in both.
	Changes []FieldChange `json:"changes,omitempty"`

	// UnchangedCount is the number of profiles found in both without
	// field changes.
	UnchangedCount int `json:"unchangedCount"`
}

// FieldChange is one changed field of a profile.
type FieldChange struct {
	Candidate string `json:"candidate"`
	Field     string `json:"field"`
	Previous  any    `json:"previous"`
	Current   any    `json:"current"`
}

// compareSessions compares the Found records of two sessions by candidate.
func compareSessions(previous, current *model.SearchSession) *ComparisonResult {
	result := &ComparisonResult{
		Platform:        current.Platform,
		Target:          current.Target.String(),
		PreviousSession: previous.ID,
		CurrentSession:  current.ID,
		PreviousStarted: previous.StartedAt,
		CurrentStarted:  current.StartedAt,
	}

	before := recordsByCandidate(previous)
	after := recordsByCandidate(current)

	for _, r := range current.Records {
		old, ok := before[r.Candidate]
		if !ok {
			result.NewProfiles = append(result.NewProfiles, r.Candidate)
			continue
		}
		changes := fieldChanges(old, r)
		if len(changes) == 0 {
			result.UnchangedCount++
			continue
		}
		result.Changes = append(result.Changes, changes...)
	}
	for _, r := range previous.Records {
		if _, ok := after[r.Candidate]; !ok {
			result.GoneProfiles = append(result.GoneProfiles, r.Candidate)
		}
	}
	return result
}

func recordsByCandidate(s *model.SearchSession) map[string]model.ProfileRecord {
	m := make(map[string]model.ProfileRecord, len(s.Records))
	for _, r := range s.Records {
		m[r.Candidate] = r
	}
	return m
}

// fieldChanges returns the fields whose value differs, sorted by name.
// Values are compared by their printed form; stored numbers come back as
// floats.
func fieldChanges(previous, current model.ProfileRecord) []FieldChange {
	names := make(map[string]bool)
	for name := range previous.Fields {
		names[name] = true
	}
	for name := range current.Fields {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var changes []FieldChange
	for _, name := range sorted {
		was, hadOld := previous.Fields[name]
		now, hasNew := current.Fields[name]
		if hadOld == hasNew && fmt.Sprint(was) == fmt.Sprint(now) {
			continue
		}
		changes = append(changes, FieldChange{
			Candidate: current.Candidate,
			Field:     name,
			Previous:  was,
			Current:   now,
		})
	}
	return changes
}

// comparisonTable renders a comparison for the terminal.
func comparisonTable(c *ComparisonResult) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s %s: %s -> %s", c.Platform, c.Target,
		c.PreviousStarted.Local().Format(time.DateTime), c.CurrentStarted.Local().Format(time.DateTime)))
	t.AppendHeader(table.Row{"Change", "Candidate", "Field", "Previous", "Current"})
	for _, name := range c.NewProfiles {
		t.AppendRow(table.Row{"new", name, "", "", ""})
	}
	for _, name := range c.GoneProfiles {
		t.AppendRow(table.Row{"gone", name, "", "", ""})
	}
	for _, ch := range c.Changes {
		t.AppendRow(table.Row{"changed", ch.Candidate, ch.Field, printable(ch.Previous), printable(ch.Current)})
	}
	t.AppendFooter(table.Row{"Unchanged", c.UnchangedCount, "", "", ""})
	return t.Render()
}

func printable(v any) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(v)
}
