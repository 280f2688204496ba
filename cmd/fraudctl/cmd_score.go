package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/richxcame/trustx/internal/detection"
	"github.com/richxcame/trustx/internal/risk"
	"github.com/richxcame/trustx/internal/signals"
	"github.com/spf13/cobra"
)

type scoreOptions struct {
	weightsFile string
	fetch       bool
	jsonOutput  bool
	timeout     time.Duration
}

func newScoreCmd() *cobra.Command {
	opts := &scoreOptions{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score text or a URL with the local extractors",
	}
	cmd.PersistentFlags().StringVar(&opts.weightsFile, "weights", "", "YAML file overriding the built-in weight tables")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print the assessment as JSON")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "overall scoring timeout")

	textCmd := &cobra.Command{
		Use:   "text [content]",
		Short: "Score a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &signals.Request{Kind: risk.KindText, Content: strings.Join(args, " ")}
			return runScore(cmd.Context(), cmd.OutOrStdout(), opts, req)
		},
	}

	urlCmd := &cobra.Command{
		Use:   "url [url]",
		Short: "Score a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &signals.Request{Kind: risk.KindURL, URL: strings.TrimSpace(args[0])}
			return runScore(cmd.Context(), cmd.OutOrStdout(), opts, req)
		},
	}
	urlCmd.Flags().BoolVar(&opts.fetch, "fetch", false, "fetch the page and score its visible text")

	cmd.AddCommand(textCmd, urlCmd)
	return cmd
}

// localPipeline builds a pipeline without the registry, OCR or classifier.
func localPipeline(opts *scoreOptions) (*detection.Pipeline, error) {
	weights, err := risk.LoadWeights(opts.weightsFile)
	if err != nil {
		return nil, err
	}
	textTable, _ := weights.For(risk.KindText)

	deps := signals.Dependencies{TextTable: textTable}
	if opts.fetch {
		deps.Fetcher = signals.NewHTTPPageFetcher(signals.PageFetcherConfig{
			Timeout:   10 * time.Second,
			UserAgent: "TrustX-fraudctl/1.0",
		})
	}
	set, _ := signals.Build(deps)

	return detection.New(detection.Options{
		Weights:          weights,
		Extractors:       set,
		PipelineTimeout:  opts.timeout,
		ExtractorTimeout: opts.timeout,
	})
}

func runScore(ctx context.Context, out io.Writer, opts *scoreOptions, req *signals.Request) error {
	pipeline, err := localPipeline(opts)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, req)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Assessment)
	}
	printAssessment(out, res)
	return nil
}

func printAssessment(out io.Writer, res *detection.Result) {
	a := res.Assessment
	fmt.Fprintf(out, "Risk score: %.2f\n", a.RiskScore)
	fmt.Fprintf(out, "Risk level: %s\n", a.RiskLevel)

	fmt.Fprintln(out, "Signals:")
	for _, s := range a.Signals {
		fmt.Fprintf(out, "  %-18s score=%.2f weight=%.2f\n", s.Name, s.Score, s.Weight)
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(out, "Unavailable: %s\n", strings.Join(res.Failed, ", "))
	}

	if len(a.Indicators) > 0 {
		fmt.Fprintln(out, "Indicators:")
		for _, ind := range a.Indicators {
			fmt.Fprintf(out, "  - %s\n", ind)
		}
	}
	fmt.Fprintln(out, "Recommendations:")
	for _, rec := range a.Recommendations {
		fmt.Fprintf(out, "  - %s\n", rec)
	}
}
