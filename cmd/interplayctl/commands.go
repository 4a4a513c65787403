package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/interplay/internal/formatting"
	"github.com/Kocoro-lab/interplay/internal/report"
	"github.com/Kocoro-lab/interplay/internal/schedules"
	"github.com/Kocoro-lab/interplay/internal/skills"
)

var (
	genDays         int
	genBusinessType string
	genTrigger      string
	latestJSON      bool
	latestMarkdown  bool
	failReason      string
	stuckOlderThan  string
	stuckReason     string
	skillDirs       []string
	schedCron       string
	schedTimezone   string
	schedDays       int
	schedBusiness   string
)

func addCommands(root *cobra.Command) {
	generateCmd := &cobra.Command{
		Use:   "generate CLIENT",
		Short: "Start a report for a client",
		Args:  cobra.ExactArgs(1),
		RunE:  runGenerate,
	}
	generateCmd.Flags().IntVar(&genDays, "days", 0, "look-back window in days (server default when 0)")
	generateCmd.Flags().StringVar(&genBusinessType, "business-type", "", "skill bundle to use")
	generateCmd.Flags().StringVar(&genTrigger, "trigger", "manual", "manual, scheduled or api")
	root.AddCommand(generateCmd)

	latestCmd := &cobra.Command{
		Use:   "latest CLIENT",
		Short: "Show the latest report of a client",
		Args:  cobra.ExactArgs(1),
		RunE:  runLatest,
	}
	latestCmd.Flags().BoolVar(&latestJSON, "json", false, "print the raw JSON")
	latestCmd.Flags().BoolVar(&latestMarkdown, "markdown", false, "render the report as Markdown")
	root.AddCommand(latestCmd)

	root.AddCommand(&cobra.Command{
		Use:   "debug REPORT",
		Short: "Print every stage output of a report",
		Args:  cobra.ExactArgs(1),
		RunE:  runDebug,
	})

	failCmd := &cobra.Command{
		Use:   "fail REPORT",
		Short: "Mark a stuck report failed and terminate its workflow",
		Args:  cobra.ExactArgs(1),
		RunE:  runFail,
	}
	failCmd.Flags().StringVar(&failReason, "reason", "", "reason recorded on the run")
	root.AddCommand(failCmd)

	failStuckCmd := &cobra.Command{
		Use:   "fail-stuck",
		Short: "Fail every non-terminal report older than a threshold",
		Args:  cobra.NoArgs,
		RunE:  runFailStuck,
	}
	failStuckCmd.Flags().StringVar(&stuckOlderThan, "older-than", "2h", "age threshold")
	failStuckCmd.Flags().StringVar(&stuckReason, "reason", "", "reason recorded on each run")
	root.AddCommand(failStuckCmd)

	skillsCmd := &cobra.Command{Use: "skills", Short: "Inspect skill bundles"}
	skillsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List the bundles available locally",
		Args:  cobra.NoArgs,
		RunE:  runSkillsList,
	}
	skillsListCmd.Flags().StringSliceVar(&skillDirs, "dir", nil, "overlay directories (default: SKILLS_DIR resolution)")
	skillsCmd.AddCommand(skillsListCmd)
	root.AddCommand(skillsCmd)

	schedulesCmd := &cobra.Command{Use: "schedules", Short: "Manage recurring reports"}
	schedCreateCmd := &cobra.Command{
		Use:   "create CLIENT",
		Short: "Create a cron schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runScheduleCreate,
	}
	schedCreateCmd.Flags().StringVar(&schedCron, "cron", "", "cron expression")
	schedCreateCmd.Flags().StringVar(&schedTimezone, "timezone", "", "IANA timezone")
	schedCreateCmd.Flags().IntVar(&schedDays, "days", 0, "look-back window in days")
	schedCreateCmd.Flags().StringVar(&schedBusiness, "business-type", "", "skill bundle to use")
	_ = schedCreateCmd.MarkFlagRequired("cron")
	schedulesCmd.AddCommand(schedCreateCmd)
	schedulesCmd.AddCommand(&cobra.Command{
		Use:   "list CLIENT",
		Short: "List schedules of a client",
		Args:  cobra.ExactArgs(1),
		RunE:  runScheduleList,
	})
	schedulesCmd.AddCommand(&cobra.Command{
		Use:   "delete SCHEDULE",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runScheduleDelete,
	})
	root.AddCommand(schedulesCmd)
}

func clientFromSettings() *apiClient {
	return newAPIClient(settings.GetString("server"), settings.GetString("admin_token"), settings.GetDuration("timeout"))
}

func runGenerate(cmd *cobra.Command, args []string) error {
	var acc report.Accepted
	err := clientFromSettings().do(cmd.Context(), http.MethodPost, clientPath(args[0], "/reports"), map[string]interface{}{
		"days":          genDays,
		"trigger":       genTrigger,
		"business_type": genBusinessType,
	}, &acc)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report %s accepted\n", acc.ReportID)
	fmt.Fprintf(out, "  workflow: %s\n", acc.Metadata.WorkflowID)
	fmt.Fprintf(out, "  skill:    %s %s\n", acc.Metadata.BusinessType, acc.Metadata.SkillVersion)
	fmt.Fprintf(out, "  range:    %s .. %s\n", acc.Metadata.DateRange.Start.Format(time.DateOnly), acc.Metadata.DateRange.End.Format(time.DateOnly))
	return nil
}

func runLatest(cmd *cobra.Command, args []string) error {
	var raw json.RawMessage
	if err := clientFromSettings().do(cmd.Context(), http.MethodGet, clientPath(args[0], "/reports/latest"), nil, &raw); err != nil {
		return err
	}
	if latestJSON {
		return printJSON(cmd.OutOrStdout(), raw)
	}
	var s report.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if latestMarkdown {
		_, err := io.WriteString(cmd.OutOrStdout(), formatting.Markdown(&s))
		return err
	}
	printSummary(cmd.OutOrStdout(), &s)
	return nil
}

func printSummary(out io.Writer, s *report.Summary) {
	fmt.Fprintf(out, "Report %s (%s, %s)\n", s.ReportID, s.BusinessType, s.Status)
	fmt.Fprintf(out, "Range: %s .. %s\n", s.DateStart, s.DateEnd)
	if s.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", s.ErrorMessage)
	}
	if s.ExecutiveSummary != nil {
		fmt.Fprintf(out, "\n%s\n", s.ExecutiveSummary.Headline)
		for _, h := range s.ExecutiveSummary.Highlights {
			fmt.Fprintf(out, "  - %s\n", h)
		}
	}
	if len(s.Recommendations) > 0 {
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tSCORE\tCHANNEL\tIMPACT\tTITLE")
		for i, r := range s.Recommendations {
			fmt.Fprintf(tw, "%d\t%.2f\t%s\t%s\t%s\n", i+1, r.Score, r.Channel, r.Impact, r.Title)
		}
		tw.Flush()
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}

func runDebug(cmd *cobra.Command, args []string) error {
	var raw json.RawMessage
	if err := clientFromSettings().do(cmd.Context(), http.MethodGet, "/api/v1/reports/"+url.PathEscape(args[0])+"/debug", nil, &raw); err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), raw)
}

func runFail(cmd *cobra.Command, args []string) error {
	err := clientFromSettings().do(cmd.Context(), http.MethodPost, "/api/v1/reports/"+url.PathEscape(args[0])+"/fail",
		map[string]string{"reason": failReason}, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report %s marked failed\n", args[0])
	return nil
}

func runFailStuck(cmd *cobra.Command, _ []string) error {
	var resp struct {
		Failed []string `json:"failed"`
	}
	err := clientFromSettings().do(cmd.Context(), http.MethodPost, "/api/v1/admin/reports/fail-stuck",
		map[string]string{"older_than": stuckOlderThan, "reason": stuckReason}, &resp)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d report(s) marked failed\n", len(resp.Failed))
	for _, id := range resp.Failed {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}

func runSkillsList(cmd *cobra.Command, _ []string) error {
	dirs := skillDirs
	if len(dirs) == 0 {
		dirs = skills.ResolveSkillDirs()
	}
	reg, err := skills.NewDefaultRegistry(zap.NewNop(), dirs...)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BUSINESS TYPE\tVERSION\tPLACEHOLDER\tDESCRIPTION")
	for _, s := range reg.List() {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", s.BusinessType, s.Version, s.Placeholder, s.Description)
	}
	return tw.Flush()
}

func runScheduleCreate(cmd *cobra.Command, args []string) error {
	var s schedules.Schedule
	err := clientFromSettings().do(cmd.Context(), http.MethodPost, clientPath(args[0], "/schedules"), map[string]interface{}{
		"business_type":   schedBusiness,
		"cron_expression": schedCron,
		"timezone":        schedTimezone,
		"days":            schedDays,
	}, &s)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s created (%s %s)\n", s.ID, s.CronExpression, s.Timezone)
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	var resp struct {
		Schedules []schedules.Schedule `json:"schedules"`
	}
	if err := clientFromSettings().do(cmd.Context(), http.MethodGet, clientPath(args[0], "/schedules"), nil, &resp); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCRON\tTIMEZONE\tDAYS\tSTATUS")
	for _, s := range resp.Schedules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.CronExpression, s.Timezone, s.Days, s.Status)
	}
	return tw.Flush()
}

func runScheduleDelete(cmd *cobra.Command, args []string) error {
	if err := clientFromSettings().do(cmd.Context(), http.MethodDelete, "/api/v1/schedules/"+url.PathEscape(args[0]), nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s deleted\n", args[0])
	return nil
}

func printJSON(out io.Writer, raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
