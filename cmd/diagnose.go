// -- cmd/diagnose.go --
package cmd

import (
	"fmt"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/observability"
	"github.com/xkilldash9x/triage-cli/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newDiagnoseCmd creates and configures the `diagnose` command.
func newDiagnoseCmd() *cobra.Command {
	diagnoseCmd := &cobra.Command{
		Use:   "diagnose [url]",
		Short: "Analyzes a page and suggests replacements for an element that cannot be found",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override config file and env.
			if err := viper.BindPFlag("discovery.max_results", cmd.Flags().Lookup("max-results")); err != nil {
				return err
			}
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg := appCfg
			cfg.SetDiscoveryMaxResults(viper.GetInt("discovery.max_results"))
			cfg.SetBrowserHeadless(viper.GetBool("browser.headless"))

			target := args[0]
			if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
				target = "https://" + target
			}

			criteria, err := criteriaFromFlags(cmd)
			if err != nil {
				return err
			}

			logger.Info("Starting diagnosis",
				zap.String("url", target),
				zap.String("text", criteria.Text),
				zap.String("role", criteria.Role),
				zap.String("tag", criteria.TagName),
			)

			components, err := service.NewComponents(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize components: %w", err)
			}
			defer components.Shutdown(ctx)

			triage, closeTriage, err := components.OpenTriage(ctx, target)
			if err != nil {
				return err
			}
			defer closeTriage()

			report, err := triage.Diagnose(ctx, criteria)
			if err != nil {
				return fmt.Errorf("diagnosis failed: %w", err)
			}

			return writeReport(cmd, report)
		},
	}

	diagnoseCmd.Flags().String("text", "", "visible text of the missing element")
	diagnoseCmd.Flags().String("role", "", "ARIA role of the missing element")
	diagnoseCmd.Flags().String("tag", "", "tag name of the missing element")
	diagnoseCmd.Flags().StringToString("attr", nil, "attribute criteria as key=value pairs")
	diagnoseCmd.Flags().Int("max-results", 10, "maximum number of alternative elements to report")
	diagnoseCmd.Flags().Bool("headless", true, "run the browser headless")
	diagnoseCmd.Flags().StringP("output", "o", "", "write the JSON report to a file instead of stdout")

	return diagnoseCmd
}

func criteriaFromFlags(cmd *cobra.Command) (schemas.SearchCriteria, error) {
	text, err := cmd.Flags().GetString("text")
	if err != nil {
		return schemas.SearchCriteria{}, err
	}
	role, err := cmd.Flags().GetString("role")
	if err != nil {
		return schemas.SearchCriteria{}, err
	}
	tag, err := cmd.Flags().GetString("tag")
	if err != nil {
		return schemas.SearchCriteria{}, err
	}
	attrs, err := cmd.Flags().GetStringToString("attr")
	if err != nil {
		return schemas.SearchCriteria{}, err
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	return schemas.SearchCriteria{
		Text:       text,
		Role:       role,
		TagName:    tag,
		Attributes: attrs,
	}, nil
}

func writeReport(cmd *cobra.Command, report *service.Report) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if output == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	}
	if err := os.WriteFile(output, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
	return nil
}

func init() {
	rootCmd.AddCommand(newDiagnoseCmd())
}
