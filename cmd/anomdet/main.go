// Package main is the entry point for the anomdet CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MohammedMogeab/anomaly-detector/internal/advisor"
	"github.com/MohammedMogeab/anomaly-detector/internal/detector"
	"github.com/MohammedMogeab/anomaly-detector/internal/mutator"
	"github.com/MohammedMogeab/anomaly-detector/internal/recorder"
	"github.com/MohammedMogeab/anomaly-detector/internal/replay"
	"github.com/MohammedMogeab/anomaly-detector/internal/reporter"
	"github.com/MohammedMogeab/anomaly-detector/internal/risk"
	"github.com/MohammedMogeab/anomaly-detector/internal/rules"
	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

var (
	version = "1.0.0"
	cfgFile string
	config  *types.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "anomdet",
	Short: "anomdet - Replay-and-Diff Business Logic Tester",
	Long: `anomdet records baseline API flows, mutates them with rule-driven
payloads (numeric, string, auth, parameter, sequence), replays the
mutations against the live target and classifies the response
differences into ranked anomalies.`,
	Version: version,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture baseline flows",
}

var recordHARCmd = &cobra.Command{
	Use:   "har [file]",
	Short: "Import a HAR archive as a baseline flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		if name == "" {
			name = strings.TrimSuffix(args[0], ".har")
		}
		flow, err := recorder.ImportHAR(s, args[0], name, description)
		if err != nil {
			return err
		}
		printSuccess("Imported flow %d (%q) with %d requests", flow.ID, flow.Name, flow.RequestCount)
		return nil
	},
}

var recordSpecCmd = &cobra.Command{
	Use:   "spec [file]",
	Short: "Capture a baseline flow from an OpenAPI document",
	Long: `Loads an OpenAPI document, derives one request per declared operation
and executes each against the live target to capture baseline responses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := interruptContext()
		defer cancel()

		baseURL, _ := cmd.Flags().GetString("url")
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = "baseline " + time.Now().Format("2006-01-02 15:04")
		}

		client := replay.NewClient(config.Replay)
		flow, err := recorder.CaptureFromOpenAPI(ctx, s, client, args[0], baseURL, name)
		if err != nil {
			return err
		}
		printSuccess("Captured flow %d (%q) with %d baseline requests", flow.ID, flow.Name, flow.RequestCount)
		return nil
	},
}

var recordJourneyCmd = &cobra.Command{
	Use:   "journey [file]",
	Short: "Record a flow from a JSON journey file",
	Long: `Reads a JSON array of requests (url, method, headers, body,
response_status, response_body) and records them as one flow through a
recording session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read journey file: %w", err)
		}
		var requests []types.Request
		if err := json.Unmarshal(data, &requests); err != nil {
			return fmt.Errorf("parse journey file: %w", err)
		}
		if len(requests) == 0 {
			return fmt.Errorf("journey file %s has no requests", args[0])
		}

		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("description")
		if name == "" {
			name = strings.TrimSuffix(args[0], ".json")
		}

		rec := recorder.NewRecorder(s)
		if _, err := rec.Start(name, requests[0].URL, description); err != nil {
			return err
		}
		for i := range requests {
			if _, err := rec.Record(&requests[i]); err != nil {
				return err
			}
		}
		flow, err := rec.Stop()
		if err != nil {
			return err
		}
		printSuccess("Recorded flow %d (%q) with %d requests", flow.ID, flow.Name, flow.RequestCount)
		return nil
	},
}

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List recorded flows",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		flows, err := s.ListFlows()
		if err != nil {
			return err
		}
		if len(flows) == 0 {
			printInfo("No flows recorded yet")
			return nil
		}
		for _, f := range flows {
			fmt.Printf("%4d  %-30s  %3d requests  %s\n", f.ID, f.Name, f.RequestCount, f.Target)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show [flow-id]",
	Short: "Show a flow's requests, test cases and anomalies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		flowID, err := parseID(args[0])
		if err != nil {
			return err
		}
		flow, err := s.GetFlow(flowID)
		if err != nil {
			return err
		}
		fmt.Printf("Flow %d: %s (%s)\n", flow.ID, flow.Name, flow.Target)

		requests, err := s.GetRequests(flowID)
		if err != nil {
			return err
		}
		for _, r := range requests {
			fmt.Printf("  #%d  %-6s %s -> %d\n", r.SequenceNumber, r.Method, r.URL, r.ResponseStatus)
		}

		cases, err := s.GetTestCases(store.TestCaseFilter{FlowID: flowID})
		if err != nil {
			return err
		}
		anomalies, err := s.GetAnomalies(store.AnomalyFilter{FlowID: flowID})
		if err != nil {
			return err
		}
		fmt.Printf("Test cases: %d, anomalies: %d, risk: %.1f (%s)\n",
			len(cases), len(anomalies), risk.FlowRisk(anomalies), risk.Categorize(risk.FlowRisk(anomalies)))
		return nil
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage mutation rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list [category]",
	Short: "List mutation rules for a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		enabledOnly, _ := cmd.Flags().GetBool("enabled")
		list, err := rules.NewCatalog(s).ListRules(args[0], enabledOnly)
		if err != nil {
			return err
		}
		for _, r := range list {
			state := "enabled"
			if !r.Enabled {
				state = "disabled"
			}
			params, _ := types.EncodeRuleParams(r.Params)
			fmt.Printf("%4d  %-25s %-8s  %s\n      %s\n", r.ID, r.Type, state, r.Description, params)
		}
		return nil
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add [category] [type] [params-json]",
	Short: "Add a mutation rule",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		params, err := types.DecodeRuleParams(args[1], []byte(args[2]))
		if err != nil {
			return fmt.Errorf("parse rule params: %w", err)
		}
		description, _ := cmd.Flags().GetString("description")
		rule := &types.MutationRule{
			Category:    args[0],
			Type:        args[1],
			Params:      params,
			Enabled:     true,
			Description: description,
		}
		id, err := rules.NewCatalog(s).AddRule(rule)
		if err != nil {
			return err
		}
		printSuccess("Added rule %d", id)
		return nil
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable [rule-id]",
	Short: "Enable a mutation rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], true) },
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable [rule-id]",
	Short: "Disable a mutation rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], false) },
}

var rulesClearCmd = &cobra.Command{
	Use:   "clear [category]",
	Short: "Delete every rule in a category (defaults are not re-seeded)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := rules.NewCatalog(s).ClearCategory(args[0]); err != nil {
			return err
		}
		printSuccess("Cleared %s rules", args[0])
		return nil
	},
}

var keywordCmd = &cobra.Command{
	Use:   "keyword",
	Short: "Manage body keyword detector rules",
}

var keywordAddCmd = &cobra.Command{
	Use:   "add [keyword] [type] [severity]",
	Short: "Add a keyword detector rule",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		severity := types.Severity(args[2])
		if !severity.Valid() {
			return fmt.Errorf("invalid severity %q (Critical, High, Medium, Low, Info)", args[2])
		}
		list, err := detector.LoadKeywordRules(s)
		if err != nil {
			return err
		}
		list = append(list, detector.KeywordRule{Keyword: args[0], Type: args[1], Severity: severity})
		if err := detector.SaveKeywordRules(s, list); err != nil {
			return err
		}
		printSuccess("Added keyword rule (%d total)", len(list))
		return nil
	},
}

var keywordListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keyword detector rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := detector.LoadKeywordRules(s)
		if err != nil {
			return err
		}
		for _, r := range list {
			fmt.Printf("%-30q  %-25s %s\n", r.Keyword, r.Type, r.Severity)
		}
		return nil
	},
}

var keywordClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all keyword detector rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := detector.SaveKeywordRules(s, nil); err != nil {
			return err
		}
		printSuccess("Cleared keyword rules")
		return nil
	},
}

var statusRuleCmd = &cobra.Command{
	Use:   "status",
	Short: "Manage status code override rules",
}

var statusRuleAddCmd = &cobra.Command{
	Use:   "add [original] [replayed] [severity]",
	Short: "Add a status code override for an exact (original, replayed) pair",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		original, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid original status %q", args[0])
		}
		replayed, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid replayed status %q", args[1])
		}
		severity := types.Severity(args[2])
		if !severity.Valid() {
			return fmt.Errorf("invalid severity %q", args[2])
		}
		isVuln, _ := cmd.Flags().GetBool("vuln")
		vulnType, _ := cmd.Flags().GetString("vuln-type")

		list, err := detector.LoadStatusCodeRules(s)
		if err != nil {
			return err
		}
		list = append(list, detector.StatusCodeRule{
			Original: original, Replayed: replayed,
			Severity: severity, IsVulnerability: isVuln, VulnerabilityType: vulnType,
		})
		if err := detector.SaveStatusCodeRules(s, list); err != nil {
			return err
		}
		printSuccess("Added status rule %d -> %d (%d total)", original, replayed, len(list))
		return nil
	},
}

var statusRuleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List status code override rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := detector.LoadStatusCodeRules(s)
		if err != nil {
			return err
		}
		for _, r := range list {
			fmt.Printf("%d -> %d: %s vuln=%v %s\n", r.Original, r.Replayed, r.Severity, r.IsVulnerability, r.VulnerabilityType)
		}
		return nil
	},
}

var statusRuleClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all status code override rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := detector.SaveStatusCodeRules(s, nil); err != nil {
			return err
		}
		printSuccess("Cleared status code rules")
		return nil
	},
}

var mutateCmd = &cobra.Command{
	Use:   "mutate [flow-id]",
	Short: "Generate test cases for a flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		flowID, err := parseID(args[0])
		if err != nil {
			return err
		}
		gen := mutator.NewGenerator(s, rules.NewCatalog(s))

		requestID, _ := cmd.Flags().GetInt64("request")
		var cases []types.TestCase
		if requestID != 0 {
			cases, err = gen.GenerateForRequest(requestID)
		} else {
			cases, err = gen.GenerateForFlow(flowID)
		}
		if err != nil {
			return err
		}

		byCategory := map[string]int{}
		for _, tc := range cases {
			byCategory[tc.Category]++
		}
		printSuccess("Generated %d test cases", len(cases))
		for _, cat := range []string{types.CategoryNumeric, types.CategoryString, types.CategoryAuth, types.CategoryParameter, types.CategorySequence} {
			if byCategory[cat] > 0 {
				printInfo("  %-10s %d", cat, byCategory[cat])
			}
		}
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay [flow-id | case-ids...]",
	Short: "Replay test cases against the live target",
	Long: `With --flow, replays every test case of the flow strictly in request
sequence order with a fixed delay between requests. Otherwise the
arguments are test case ids, replayed with bounded concurrency.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := interruptContext()
		defer cancel()

		exec := replay.NewExecutor(s, replay.NewClient(config.Replay))
		if rate, _ := cmd.Flags().GetFloat64("rate"); rate > 0 {
			exec.SetRateLimit(rate)
		}
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
			exec.SetTimeout(timeout)
		}
		if cmd.Flags().Changed("delay") {
			delay, _ := cmd.Flags().GetDuration("delay")
			exec.SetDelay(delay)
		}

		var outcome *types.BatchOutcome
		if isFlow, _ := cmd.Flags().GetBool("flow"); isFlow {
			flowID, err := parseID(args[0])
			if err != nil {
				return err
			}
			outcome, err = exec.ReplayFlow(ctx, flowID)
			if err != nil {
				return err
			}
		} else {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent")
			outcome, err = exec.ReplayTestCases(ctx, ids, maxConcurrent)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}

		printSuccess("Replayed %d test cases (%d ok, %d failed)",
			outcome.Attempted(), len(outcome.Succeeded), len(outcome.Failed))
		for _, f := range outcome.Failed {
			printWarning("  case %d: %s", f.ID, f.Error)
		}
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flow-id]",
	Short: "Classify replayed responses into anomalies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		flowID, err := parseID(args[0])
		if err != nil {
			return err
		}
		anomalies, outcome, err := detector.NewClassifier(s).AnalyzeFlow(flowID)
		if err != nil {
			return err
		}

		printSuccess("Analyzed %d test cases, %d anomalies", outcome.Attempted(), len(anomalies))
		for _, f := range outcome.Failed {
			printWarning("  case %d: %s", f.ID, f.Error)
		}
		for _, a := range anomalies {
			printAnomaly(a)
		}
		score := risk.FlowRisk(anomalies)
		printInfo("Flow risk: %.1f (%s)", score, risk.Categorize(score))
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [flow-id]",
	Short: "Render a flow report (json, html, csv)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		flowID, err := parseID(args[0])
		if err != nil {
			return err
		}
		report, err := reporter.BuildFlowReport(s, flowID)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = config.Output.Format
		}
		rep, err := reporter.NewReporter(format)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" && config.Output.File != "" {
			output = config.Output.File
		}
		if output == "" {
			return rep.Write(report, os.Stdout)
		}
		if !strings.HasSuffix(output, "."+rep.Extension()) {
			output += "." + rep.Extension()
		}
		if err := reporter.WriteToFile(rep, report, output); err != nil {
			return err
		}
		printSuccess("Report saved to %s", output)
		return nil
	},
}

var adviseCmd = &cobra.Command{
	Use:   "advise [flow-id]",
	Short: "Generate remediation advice for a flow's top findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adv, err := advisor.New(config.Advisor)
		if errors.Is(err, advisor.ErrDisabled) {
			return fmt.Errorf("advisor disabled: set advisor.enabled and advisor.api_key in the config file")
		}
		if err != nil {
			return err
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := interruptContext()
		defer cancel()

		flowID, err := parseID(args[0])
		if err != nil {
			return err
		}
		report, err := reporter.BuildFlowReport(s, flowID)
		if err != nil {
			return err
		}

		top, _ := cmd.Flags().GetInt("top")
		if top <= 0 {
			top = 3
		}
		if top > len(report.Findings) {
			top = len(report.Findings)
		}
		for _, f := range report.Findings[:top] {
			tc, err := s.GetTestCase(f.Anomaly.TestCaseID)
			if err != nil {
				tc = nil
			}
			advice, err := adv.Advise(ctx, &f.Anomaly, tc)
			if err != nil {
				return err
			}
			printAnomaly(f.Anomaly)
			fmt.Println(indent(advice, "    "))
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage runtime settings stored in the database",
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a runtime setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		return s.SetConfig(args[0], args[1])
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a runtime setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		value, err := s.GetConfig(args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective runtime settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		settings := store.NewSettings(s)
		fmt.Printf("%-30s %d\n", types.ConfigMaxConcurrentRequests, settings.MaxConcurrentRequests())
		fmt.Printf("%-30s %s\n", types.ConfigRequestDelayMs, settings.RequestDelay())
		fmt.Printf("%-30s %s\n", types.ConfigTimeoutSeconds, settings.Timeout())
		fmt.Printf("%-30s %.2f\n", types.ConfigDetectionThreshold, settings.DetectionThreshold())
		for _, cat := range []string{types.CategoryNumeric, types.CategoryString, types.CategoryAuth, types.CategoryParameter, types.CategorySequence} {
			fmt.Printf("%-30s %v\n", types.ConfigCategoryEnabled(cat), settings.CategoryEnabled(cat))
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.anomdet.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))

	recordHARCmd.Flags().String("name", "", "Flow name (defaults to the file name)")
	recordHARCmd.Flags().String("description", "", "Flow description")
	recordSpecCmd.Flags().StringP("url", "u", "", "Base URL (defaults to the document's first server)")
	recordSpecCmd.Flags().String("name", "", "Flow name")
	recordJourneyCmd.Flags().String("name", "", "Flow name (defaults to the file name)")
	recordJourneyCmd.Flags().String("description", "", "Flow description")
	recordCmd.AddCommand(recordHARCmd, recordSpecCmd, recordJourneyCmd)

	rulesListCmd.Flags().Bool("enabled", false, "Only show enabled rules")
	rulesAddCmd.Flags().String("description", "", "Rule description")
	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesEnableCmd, rulesDisableCmd, rulesClearCmd, keywordCmd, statusRuleCmd)
	keywordCmd.AddCommand(keywordAddCmd, keywordListCmd, keywordClearCmd)
	statusRuleAddCmd.Flags().Bool("vuln", false, "Flag matches as potential vulnerabilities")
	statusRuleAddCmd.Flags().String("vuln-type", "", "Vulnerability type to attach")
	statusRuleCmd.AddCommand(statusRuleAddCmd, statusRuleListCmd, statusRuleClearCmd)

	mutateCmd.Flags().Int64("request", 0, "Generate for a single request id only")

	replayCmd.Flags().Bool("flow", false, "Treat the argument as a flow id and replay sequentially")
	replayCmd.Flags().Int("max-concurrent", 0, "Concurrency limit for id-list replay (0 = configured value)")
	replayCmd.Flags().Float64("rate", 0, "Requests per second (0 = unlimited)")
	replayCmd.Flags().Duration("timeout", 0, "Per-request timeout (0 = configured value)")
	replayCmd.Flags().Duration("delay", 0, "Delay after each sequential replay")

	reportCmd.Flags().StringP("format", "f", "", "Output format (json, html, csv)")
	reportCmd.Flags().StringP("output", "o", "", "Output file (stdout if unset)")

	adviseCmd.Flags().Int("top", 3, "Number of findings to request advice for")

	configCmd.AddCommand(configSetCmd, configGetCmd, configShowCmd)

	rootCmd.AddCommand(recordCmd, flowsCmd, showCmd, rulesCmd, mutateCmd, replayCmd, analyzeCmd, reportCmd, adviseCmd, configCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".anomdet")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ANOMDET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	_ = viper.ReadInConfig()

	config = types.DefaultConfig()
	_ = viper.Unmarshal(config)

	if noColor, _ := rootCmd.PersistentFlags().GetBool("no-color"); noColor || !config.Output.Color {
		color.NoColor = true
	}
}

func openStore() (store.Store, error) {
	path := config.Database.Path
	if path == "" {
		path = types.DefaultConfig().Database.Path
	}
	return store.OpenSQLite(path)
}

func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		printWarning("\nInterrupted, shutting down...")
		cancel()
	}()
	return ctx, cancel
}

func setRuleEnabled(arg string, enabled bool) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := parseID(arg)
	if err != nil {
		return err
	}
	if err := rules.NewCatalog(s).SetRuleEnabled(id, enabled); err != nil {
		return err
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	printSuccess("Rule %d %s", id, state)
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

// Printing helpers

func printInfo(format string, args ...interface{}) {
	color.Cyan("[*] "+format, args...)
}

func printSuccess(format string, args ...interface{}) {
	color.Green("[+] "+format, args...)
}

func printWarning(format string, args ...interface{}) {
	color.Yellow("[!] "+format, args...)
}

func printError(format string, args ...interface{}) {
	color.Red("[-] "+format, args...)
}

func printAnomaly(a types.Anomaly) {
	var c *color.Color
	switch a.Severity {
	case types.SeverityCritical:
		c = color.New(color.FgRed, color.Bold)
	case types.SeverityHigh:
		c = color.New(color.FgRed)
	case types.SeverityMedium:
		c = color.New(color.FgYellow)
	case types.SeverityLow:
		c = color.New(color.FgBlue)
	default:
		c = color.New(color.FgCyan)
	}
	c.Printf("[%s] %s (confidence %.2f)\n", strings.ToUpper(string(a.Severity)), a.Type, a.ConfidenceScore)
	fmt.Printf("    %s\n", a.Description)
	if a.IsPotentialVulnerability {
		fmt.Printf("    Potential vulnerability: %s\n", a.VulnerabilityType)
	}
	if a.OriginalStatus != 0 || a.ReplayedStatus != 0 {
		fmt.Printf("    Status: %d -> %d\n", a.OriginalStatus, a.ReplayedStatus)
	}
}
