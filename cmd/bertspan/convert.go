package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/katnastou/bert-span-classifier/internal/data"
)

type convertOptions struct {
	labelField int
	textFields string
}

func newConvertCmd(st *cliState) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:     "convert <input.tsv> <output.tfrecord>",
		Short:   "Convert tagged TSV training data to TFRecord",
		Args:    cobra.ExactArgs(2),
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, st, &opts, args[0], args[1])
		},
	}

	cmd.Flags().IntVar(&opts.labelField, "label_field", 0, "1-based label column; negative counts from the end (overrides config)")
	cmd.Flags().StringVar(&opts.textFields, "text_fields", "", "1-based text columns, comma-separated (overrides config)")

	return cmd
}

func runConvert(cmd *cobra.Command, st *cliState, opts *convertOptions, input, output string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("convert: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("convert: nil options")
	}
	cfg := st.cfg

	labelField := opts.labelField
	if labelField == 0 {
		labelField = cfg.Training.LabelField
	}
	rawTextFields := strings.TrimSpace(opts.textFields)
	if rawTextFields == "" {
		rawTextFields = cfg.Training.TextFields
	}
	textFields, err := data.ParseTextFields(rawTextFields)
	if err != nil {
		return err
	}

	spec := data.FieldSpec{LabelField: labelField, TextFields: textFields}
	markers := data.SpanMarkers{
		ABegin: cfg.Markers.SpanABegin,
		AEnd:   cfg.Markers.SpanAEnd,
		BBegin: cfg.Markers.SpanBBegin,
		BEnd:   cfg.Markers.SpanBEnd,
	}

	examples, err := data.LoadTSV(input, spec, markers, data.Replacements{})
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("convert: create %q: %w", output, err)
	}

	w := data.NewTFRecordWriter(f)
	for _, ex := range examples {
		rec, err := data.MarshalExample(ex)
		if err != nil {
			_ = f.Close()
			return err
		}
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("convert: close %q: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Converted %d examples: %s -> %s\n", len(examples), input, output)
	return nil
}
