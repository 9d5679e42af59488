package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/benvon/smart-autotrader/internal/config"
	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/services/clarify"
	"github.com/benvon/smart-autotrader/internal/services/extraction"
	"github.com/benvon/smart-autotrader/internal/services/reconcile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewExtractCmd creates the extract command
func NewExtractCmd() *cobra.Command {
	var model string
	var debug bool

	cmd := &cobra.Command{
		Use:   "extract <message>",
		Short: "Dry-run one message through extraction, reconciliation and the clarification policy",
		Long: "Send a message to the configured extractor as the first turn of a new conversation " +
			"and print what the engine would do with it. Nothing is searched or stored.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := zap.NewNop()
			if debug {
				if log, err = zap.NewDevelopment(); err != nil {
					return fmt.Errorf("failed to create logger: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ExtractorTimeout)
			defer cancel()
			return dryRun(ctx, cmd.OutOrStdout(), newExtractor(cfg, log, debug), model, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model label to force")
	cmd.Flags().BoolVar(&debug, "debug", false, "Log extractor requests and responses")
	return cmd
}

func newExtractor(cfg *config.Config, log *zap.Logger, debug bool) extraction.Extractor {
	if cfg.ExtractorBackend == config.ExtractorOpenAI {
		return extraction.NewOpenAIExtractor(extraction.OpenAIExtractorConfig{
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.AIBaseURL,
			Model:     cfg.AIModel,
			Models:    cfg.AIModelMap,
			Timeout:   cfg.ExtractorTimeout,
			DebugMode: debug,
		}, log)
	}
	return extraction.NewHTTPExtractor(extraction.HTTPExtractorConfig{
		BaseURL:      cfg.ExtractorURL,
		Timeout:      cfg.ExtractorTimeout,
		ClientID:     cfg.ExtractorClientID,
		ClientSecret: cfg.ExtractorClientSecret,
		TokenURL:     cfg.ExtractorTokenURL,
		DebugMode:    debug,
	}, log)
}

// dryRun extracts message against an empty conversation and reports the
// reconciled parameters and the policy decision
func dryRun(ctx context.Context, w io.Writer, extractor extraction.Extractor, model, message string) error {
	result, err := extractor.ExtractParameters(ctx, extraction.ExtractionRequest{Query: message, ForceModel: model})
	if err != nil {
		return fmt.Errorf("extraction failed (%s): %w", extraction.ErrorKind(err), err)
	}

	fmt.Fprintf(w, "Intent: %s\n", result.Intent)
	switch {
	case result.Degraded:
		fmt.Fprintln(w, "Result: degraded, the reply could not be interpreted")
		return nil
	case result.IsOffTopic:
		fmt.Fprintf(w, "Result: off topic (%q)\n", result.OffTopicResponse)
		return nil
	case result.RetrieverSuggestion != "":
		fmt.Fprintf(w, "Suggestion: %s\n", result.RetrieverSuggestion)
	}
	fmt.Fprintf(w, "Extracted: %s\n", criteriaSummary(result.Criteria))
	fmt.Fprintf(w, "Negated: %s\n", rejectionSummary(result.Negated))

	cc := reconcile.Apply(&models.ConversationContext{}, result)
	cc.TopicContext = clarify.DetectTopics(message)
	fmt.Fprintf(w, "Reconciled: %s\n", criteriaSummary(cc.CurrentParameters))

	decision := clarify.NewPolicy(nil).Decide(cc, result)
	fmt.Fprintf(w, "Decision: %s (%s)\n", decision.State, decision.Reason)
	for _, q := range decision.Questions {
		fmt.Fprintf(w, "  ask %s: %s\n", q.Field, q.Text)
	}
	return nil
}
