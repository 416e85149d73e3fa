package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	jsnorm "github.com/reoring/jsnorm"
	"github.com/reoring/jsnorm/internal/logger"
	"github.com/reoring/jsnorm/schemadoc"
)

func NormalizeCmd() *cobra.Command {
	var (
		schemaPath  string
		payloadPath string
		collection  string
		meta        bool
	)
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize one JSON payload against a schema file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFrom(ctx)
			doc, err := loadSchema(schemaPath, collection)
			if err != nil {
				return err
			}
			in, closeIn, err := openInput(cmd, payloadPath)
			if err != nil {
				return err
			}
			defer closeIn()

			opt := cfg.Normalize.ParseOpt()
			opt.Presence.Collect = meta
			opt.WarnSink = func(is jsnorm.Issue) {
				logger.FromContext(ctx).Warn("payload issue", "code", is.Code, "path", is.Path)
			}
			res, err := jsnorm.NormalizeReader(ctx, jsnorm.Compile(doc.Properties), in, opt)
			if err != nil {
				return err
			}
			var out any = res.Value
			if meta {
				out = map[string]any{"value": res.Value, "presence": presenceNames(res.Presence)}
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema document (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&payloadPath, "payload", "-", "payload file, - for stdin")
	cmd.Flags().StringVar(&collection, "collection", "", "collection to pick from a multi-document YAML schema")
	cmd.Flags().BoolVar(&meta, "meta", false, "also print presence flags per JSON Pointer")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Import schema documents and report warnings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := schemadoc.Options{ValidateDocument: configFrom(cmd.Context()).Repository.ValidateDocuments}
			for _, path := range args {
				docs, diag, err := importFile(path, opts)
				if err != nil {
					return err
				}
				for _, d := range docs {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d properties)\n", path, d.CollectionName, len(d.Properties))
				}
				for _, w := range diag.Warnings() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: warning: %s\n", path, w)
				}
			}
			return nil
		},
	}
}

func importFile(path string, opts schemadoc.Options) ([]schemadoc.Document, schemadoc.Diag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return schemadoc.ImportYAML(data, opts)
	default:
		doc, diag, err := schemadoc.Import(data, opts)
		if err != nil {
			return nil, diag, err
		}
		return []schemadoc.Document{doc}, diag, nil
	}
}

func loadSchema(path, collection string) (schemadoc.Document, error) {
	docs, _, err := importFile(path, schemadoc.Options{})
	if err != nil {
		return schemadoc.Document{}, fmt.Errorf("schema %s: %w", path, err)
	}
	for _, d := range docs {
		if collection == "" || d.CollectionName == collection {
			return d, nil
		}
	}
	return schemadoc.Document{}, fmt.Errorf("schema %s: collection %q not found", path, collection)
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

var presenceBits = []struct {
	bit  jsnorm.Presence
	name string
}{
	{jsnorm.PresenceSeen, "seen"},
	{jsnorm.PresenceWasNull, "null"},
	{jsnorm.PresenceDefaultApplied, "default"},
	{jsnorm.PresenceReadOnlyStripped, "readonly_stripped"},
	{jsnorm.PresenceSynthesized, "synthesized"},
}

func presenceNames(pm jsnorm.PresenceMap) map[string][]string {
	out := make(map[string][]string, len(pm))
	for path, p := range pm {
		names := []string{}
		for _, b := range presenceBits {
			if p&b.bit != 0 {
				names = append(names, b.name)
			}
		}
		out[path] = names
	}
	return out
}
