package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/artpar/formgate/config"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the compiled view of a schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(schemaPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "entity: %s\n", s.Entity)
		if s.ValidateOn != "" {
			fmt.Fprintf(out, "default trigger: %s\n", s.ValidateOn)
		}

		keys := make([]string, 0, len(s.Fields))
		for k := range s.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			spec := s.Fields[key]
			fmt.Fprintf(out, "\nfield %s (default=%v)\n", key, spec.Default)
			if spec.Required.Set {
				msg := spec.Required.Message
				if msg == "" {
					msg = "(default message)"
				}
				fmt.Fprintf(out, "  required: %s\n", msg)
			}
			for i, rule := range spec.Rules {
				kind := rule.Type
				if kind == "" {
					kind = "error"
				}
				fmt.Fprintf(out, "  rule %d [%s]: %s -> %q", i, kind, rule.Check, rule.Message)
				if rule.Async {
					fmt.Fprint(out, " (async)")
				}
				if rule.On != "" {
					fmt.Fprintf(out, " on=%s", rule.On)
				}
				fmt.Fprintln(out)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
