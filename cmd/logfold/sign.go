package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/logfold/logfold/internal/record"
	"github.com/logfold/logfold/internal/signature"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print signatures for log records without deduplicating",
	Long: `Read NDJSON log records and print each record's signature next to its
message. Useful for checking which records would group together before
pointing the pipeline at real traffic.

Example:
  head -20 app.ndjson | logfold sign -c logfold.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gen := signature.NewGenerator(cfg.Signature.GeneratorConfig())

		in, closeIn, err := openInput(input)
		if err != nil {
			return err
		}
		defer closeIn()

		cyan := color.New(color.FgCyan).SprintFunc()
		parser := record.NewParser()
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			if len(scanner.Bytes()) == 0 {
				continue
			}
			rec, err := parser.Parse(scanner.Bytes())
			if err != nil {
				log.Printf("[WARN] skipping malformed record: %v", err)
				continue
			}
			msg := rec.Message
			if ex := rec.Exception(); ex != nil {
				msg = ex.Type + ": " + ex.Message
			}
			fmt.Fprintf(os.Stdout, "%s  %s\n", cyan(gen.Generate(rec)), msg)
		}
		return scanner.Err()
	},
}

func init() {
	signCmd.Flags().String("input", "-", "NDJSON input file (- for stdin)")
	rootCmd.AddCommand(signCmd)
}
