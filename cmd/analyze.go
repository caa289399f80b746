package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/nls-advisor/internal/analysis"
	"github.com/spigell/nls-advisor/internal/extract"
	"github.com/spigell/nls-advisor/internal/logger"
	"github.com/spigell/nls-advisor/internal/taxonomy"
)

const (
	PromptByActivity = "Show results by activity"
	PromptReport     = "Show full report"
	PromptDumpToFile = "Dump report to file"
	PromptExit       = "Exit"

	scannedPDFHint = "scanned PDFs have no text layer; export the lesson as .docx or a text PDF"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptByActivity, PromptReport, PromptDumpToFile, PromptExit},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Suggest digital competencies for a lesson plan (.docx, .pdf, .txt, .md)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		analyze(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringP("subject", "s", "", "school subject of the lesson, e.g. KHTN or Toán")
	analyzeCmd.Flags().StringP("tier", "t", "", "competency tier: TC1 or TC2")
	analyzeCmd.Flags().String("mode", "", "matching mode: heuristic or ai")
	analyzeCmd.Flags().StringP("output", "o", "", "write the JSON report to this file")
	analyzeCmd.Flags().BoolP("auto", "y", false, "print the report and exit without the interactive menu")

	viper.BindPFlag("tier", analyzeCmd.Flags().Lookup("tier"))
	viper.BindPFlag("mode", analyzeCmd.Flags().Lookup("mode"))
}

func analyze(cmd *cobra.Command, path string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the nls-advisor", zap.String("version", version), zap.String("mode", config.Mode))
	logger.Debug(fmt.Sprintf("starting with config: \n %s", prettyConfig(config)))

	table, profiles, err := loadTaxonomy(config)
	if err != nil {
		logger.Fatal("loading the competency framework", zap.Error(err))
	}

	auto, _ := cmd.Flags().GetBool("auto")

	subject, _ := cmd.Flags().GetString("subject")
	if strings.TrimSpace(subject) == "" {
		if auto || !interactive() {
			logger.Fatal("subject is required",
				zap.Strings("subjects", profiles.Names()),
				zap.String("hint", "pass --subject"),
			)
		}
		subject, err = selectSubject(profiles)
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}

	tier, err := taxonomy.ParseTier(config.Tier)
	if err != nil {
		logger.Fatal("parsing tier", zap.Error(err))
	}

	res := extract.ExtractFile(path)
	if !res.OK() {
		logger.Fatal("reading the lesson",
			zap.String("file", path),
			zap.String("status", string(res.Status)),
			zap.String("mime", res.MIME),
			zap.Error(res.Err),
		)
	}
	logExtracted(logger, res)

	pipeline, err := buildPipeline(ctx, config, table, profiles, logger)
	if err != nil {
		logger.Fatal("building the analysis pipeline", zap.Error(err))
	}

	for _, status := range analysis.Describe(pipeline.Stages()) {
		logger.Debug("analysis stage",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	report, err := pipeline.Run(ctx, analysis.Document{
		Name:    filepath.Base(path),
		Subject: subject,
		Tier:    tier,
		Text:    res.Text,
	})
	if err != nil {
		var short *analysis.InsufficientInputError
		if errors.As(err, &short) {
			logger.Warn("lesson text is too short to analyse",
				zap.Int("length", short.Length),
				zap.Int("min", short.Min),
				zap.String("hint", scannedPDFHint),
			)
			return
		}
		logger.Fatal("analysing the lesson", zap.Error(err))
	}

	if !report.Matched() {
		logger.Info("không tìm thấy năng lực số phù hợp",
			zap.String("subject", report.Subject),
			zap.String("tier", string(report.Tier)),
		)
	} else {
		logger.Info("competencies found", zap.Int("count", len(report.Results)), zap.String("report_id", report.ID))
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		if err := writeReport(output, report); err != nil {
			logger.Fatal("writing the report", zap.Error(err))
		}
		logger.Info("report written", zap.String("filename", output))
	}

	if auto || !interactive() {
		if err := printJSON(cmd.OutOrStdout(), report); err != nil {
			logger.Fatal("printing the report", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, cmd.OutOrStdout(), logger, report); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, out io.Writer, logger *zap.Logger, report *analysis.Report) error {
	switch action {
	case PromptByActivity:
		return printJSON(out, report.ByActivity())
	case PromptReport:
		return printJSON(out, report)
	case PromptDumpToFile:
		filename, err := report.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// logExtracted reports the text length in runes, the unit of the minimum
// length check.
func logExtracted(logger *zap.Logger, res extract.Result) {
	logger.Debug("lesson extracted",
		zap.String("mime", res.MIME),
		zap.Int("length", utf8.RuneCountInString(res.Text)),
	)
}

func selectSubject(profiles *taxonomy.Profiles) (string, error) {
	subjectPrompt := promptui.Select{
		Label: "Choose the subject of the lesson and press ENTER",
		Items: profiles.Names(),
		Size:  10,
	}

	_, subject, err := subjectPrompt.Run()
	return subject, err
}

func interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func writeReport(filename string, report *analysis.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// prettyConfig renders config for debug output with secrets masked.
func prettyConfig(config *Config) string {
	masked := *config
	if masked.AI.Gemini.APIKey != "" {
		masked.AI.Gemini.APIKey = "***"
	}
	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(masked, "", "  ")
	return string(pretty)
}
