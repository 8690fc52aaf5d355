package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/formgate/config"
	"github.com/artpar/formgate/core/entity"
	"github.com/artpar/formgate/core/schema"
)

var (
	valuesPath    string
	validateEvent string
	validateWait  time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a value set against a schema",
	Long: `Validate loads a declarative schema, assigns the given values to
its fields, runs every configured check, and prints the resulting
messages. Exits non-zero when any field fails validation.

Values come from a JSON object file, or stdin when the path is "-".`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&valuesPath, "values", "f", "-", `values JSON file ("-" for stdin)`)
	validateCmd.Flags().StringVarP(&validateEvent, "event", "e", "", "trigger event (touch, change; empty runs everything)")
	validateCmd.Flags().DurationVar(&validateWait, "timeout", 30*time.Second, "async check timeout")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	s, err := config.Load(schemaPath)
	if err != nil {
		return err
	}

	values, err := loadValues(valuesPath)
	if err != nil {
		return err
	}

	ent, err := s.Build(entity.WithLogger(logger))
	if err != nil {
		return err
	}

	ent.SetValues(values, true)

	ctx, cancel := context.WithTimeout(cmd.Context(), validateWait)
	defer cancel()

	ok, err := ent.Validate(ctx, schema.Event(validateEvent)).Wait(ctx)
	if err != nil {
		return fmt.Errorf("validation did not settle: %w", err)
	}

	printMessages(cmd.OutOrStdout(), ent)

	if !ok {
		return fmt.Errorf("validation failed for entity %q", s.Entity)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "entity %q valid\n", s.Entity)
	return nil
}

func loadValues(path string) (map[string]any, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open values: %w", err)
		}
		defer f.Close()
		r = f
	}

	var values map[string]any
	if err := json.NewDecoder(r).Decode(&values); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	return values, nil
}

func printMessages(w io.Writer, ent *entity.Entity) {
	for _, key := range ent.FieldKeys() {
		f, ok := ent.Lookup(key)
		if !ok {
			continue
		}
		for _, m := range f.Messages() {
			fmt.Fprintf(w, "%s: [%s] %s\n", key, m.Kind, m.Text)
		}
	}
}
