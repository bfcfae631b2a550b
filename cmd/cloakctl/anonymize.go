package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cloak/internal/anonymize"
	"cloak/internal/config"
	"cloak/internal/detect"
	"cloak/internal/extract"
	"cloak/internal/redact"
)

var (
	anonStrategy      string
	anonMinConfidence float64
	anonLabels        []string
	anonMaxChars      int
	anonOverlap       int
	anonNoNER         bool
	anonJSON          bool
)

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize [file|-]",
	Short: "Anonymize a document",
	Long: `Reads a document from the given file (or stdin when the argument
is "-" or omitted), replaces detected entities and prints the result.
With --json the full result, including the applied spans needed by
"cloakctl restore", is printed instead of plain text.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnonymize,
}

func init() {
	anonymizeCmd.Flags().StringVar(&anonStrategy, "strategy", "", "replacement strategy: mask, pseudonym or redact")
	anonymizeCmd.Flags().Float64Var(&anonMinConfidence, "min-confidence", 0, "drop detections below this confidence")
	anonymizeCmd.Flags().StringSliceVar(&anonLabels, "labels", nil, "entity labels to anonymize (default: all)")
	anonymizeCmd.Flags().IntVar(&anonMaxChars, "max-chars", 0, "chunk window size in characters")
	anonymizeCmd.Flags().IntVar(&anonOverlap, "overlap", 0, "chunk overlap in characters")
	anonymizeCmd.Flags().BoolVar(&anonNoNER, "no-ner", false, "skip the NER model, use pattern detectors only")
	anonymizeCmd.Flags().BoolVar(&anonJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(anonymizeCmd)
}

func runAnonymize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	doc, err := readInput(args)
	if err != nil {
		return err
	}

	opts := anonymize.Options{
		MaxChars:      cfg.MaxChars,
		OverlapChars:  cfg.OverlapChars,
		MinConfidence: cfg.MinConfidence,
		Strategy:      redact.Strategy(cfg.Strategy),
		Labels:        cfg.Labels,
		LabelPriority: cfg.LabelPriority,
		Markers:       doc.Markers,
		DetectTimeout: cfg.DetectTimeout(),
	}
	if anonStrategy != "" {
		opts.Strategy = redact.Strategy(anonStrategy)
	}
	if anonMinConfidence != 0 {
		opts.MinConfidence = anonMinConfidence
	}
	if anonLabels != nil {
		opts.Labels = upperAll(anonLabels)
	}
	if anonMaxChars != 0 {
		opts.MaxChars = anonMaxChars
	}
	if anonOverlap != 0 {
		opts.OverlapChars = anonOverlap
	}

	detector := buildDetector(cfg, anonNoNER)
	engine := anonymize.New(detector, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := engine.Anonymize(ctx, doc.Text, opts)
	if err != nil {
		return err
	}

	if anonJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(result.RedactedText)
	return nil
}

func loadConfig() (config.Config, error) {
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(cfgPath)
}

// readInput extracts the document from the file argument, or reads plain
// text from stdin when no file is given.
func readInput(args []string) (extract.Document, error) {
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return extract.Document{}, fmt.Errorf("read stdin: %w", err)
		}
		return extract.FromText(string(raw)), nil
	}
	return extract.File(args[0])
}

func buildDetector(cfg config.Config, noNER bool) detect.Detector {
	detectors := detect.Multi{
		detect.EmailDetector{},
		detect.PhoneDetector{},
	}
	if cfg.NEREnabled && !noNER {
		detectors = append(detectors, detect.NewNERDetector(detect.NERConfig{ModelDir: cfg.ModelDir}))
	}
	return detectors
}

func upperAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}
