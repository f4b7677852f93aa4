package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scopeguard/pricing-cli/internal/model"
	"github.com/scopeguard/pricing-cli/internal/pricing"
)

var (
	analyzeRequest     string
	analyzeProfilePath string
	analyzeRulesPath   string
	analyzeAnswersPath string
	analyzeNotes       []string
	analyzeUrgency     string
	analyzeProjectID   string
	analyzeRate        float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a client change request",
	Long: "Without --answers, generates clarification questions for the request and exits. " +
		"With --answers, runs the full pipeline (scope, market, pricing, verification) and prints the quote.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		input, err := loadAnalyzeInput(cmd)
		if err != nil {
			return err
		}

		engine, router, err := buildEngine()
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		// First call: no answers yet, so ask instead of pricing.
		if analyzeAnswersPath == "" {
			questions := engine.Clarify(ctx, input)
			logRunUsage(router)
			return enc.Encode(struct {
				Questions []model.ClarificationQuestion `json:"questions"`
			}{questions})
		}

		if analyzeProjectID != "" {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}

			corrections, err := st.ListPriceCorrections(ctx, analyzeProjectID, 10)
			if err != nil {
				zap.L().Warn("past corrections unavailable", zap.Error(err))
			} else {
				input.PastCorrections = corrections
			}
		}

		result := engine.Analyze(ctx, input)

		zap.L().Info("analysis complete",
			zap.Float64("suggested_price", result.SuggestedPrice),
			zap.Float64("estimated_hours", result.EstimatedHours),
			zap.Float64("confidence", result.Confidence),
		)
		logRunUsage(router)

		return enc.Encode(result)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRequest, "request", "", "client change request text (required)")
	analyzeCmd.Flags().StringVar(&analyzeProfilePath, "profile", "", "path to freelancer profile JSON")
	analyzeCmd.Flags().StringVar(&analyzeRulesPath, "rules", "", "path to project rules JSON")
	analyzeCmd.Flags().StringVar(&analyzeAnswersPath, "answers", "", "path to clarification answers JSON (question text -> answer); triggers the full pipeline")
	analyzeCmd.Flags().StringArrayVar(&analyzeNotes, "note", nil, "project context note (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeUrgency, "urgency", "", "request urgency (rush requests price higher)")
	analyzeCmd.Flags().StringVar(&analyzeProjectID, "project", "", "project ID, used to pull past price corrections from the store")
	analyzeCmd.Flags().Float64Var(&analyzeRate, "rate", 0, "freelancer hourly rate, overrides the profile file")
	_ = analyzeCmd.MarkFlagRequired("request")
	rootCmd.AddCommand(analyzeCmd)
}

func loadAnalyzeInput(cmd *cobra.Command) (pricing.AnalyzeInput, error) {
	input := pricing.AnalyzeInput{
		RequestText:  analyzeRequest,
		ContextNotes: analyzeNotes,
		Urgency:      analyzeUrgency,
	}

	if analyzeProfilePath != "" {
		if err := readJSONFile(analyzeProfilePath, &input.Freelancer); err != nil {
			return input, err
		}
	}
	if analyzeRulesPath != "" {
		if err := readJSONFile(analyzeRulesPath, &input.Rules); err != nil {
			return input, err
		}
	}
	if analyzeAnswersPath != "" {
		if err := readJSONFile(analyzeAnswersPath, &input.ClarificationAnswers); err != nil {
			return input, err
		}
	}
	if cmd.Flags().Changed("rate") {
		input.Freelancer.HourlyRate = analyzeRate
	}

	return input, nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "parse %s", path)
	}
	return nil
}
