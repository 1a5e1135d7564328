package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/c360studio/semlink/config"
	"github.com/c360studio/semlink/export"
	"github.com/c360studio/semlink/schema"
	"github.com/c360studio/semlink/shape"
	"github.com/c360studio/semlink/shape/sparql"
	"github.com/c360studio/semlink/storage"
	"github.com/spf13/cobra"
)

// checkCmd validates a document against a schema without NATS or HTTP:
// load the schema directory, parse the framed document, resolve guards,
// validate, and print the trace when constraints fail.
func checkCmd() *cobra.Command {
	var (
		schemaDir string
		task      string
		views     []string
		modes     []string
		roles     []string
	)

	cmd := &cobra.Command{
		Use:   "check <schema> <document.json>",
		Short: "Validate a document against a schema offline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runCheck(cmd.OutOrStdout(), configPath, schemaDir, args[0], args[1], task, views, modes, roles)
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schemas", "", "Schema directory (overrides config)")
	cmd.Flags().StringVar(&task, "task", storage.TaskCreate, "Task token to resolve guards with")
	cmd.Flags().StringSliceVar(&views, "view", nil, "View tokens to resolve guards with")
	cmd.Flags().StringSliceVar(&modes, "mode", nil, "Mode tokens to resolve guards with")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role tokens to resolve guards with")

	return cmd
}

func runCheck(out io.Writer, configPath, schemaDir, schemaName, docPath string, task string, views, modes, roles []string) error {
	registry, err := loadSchemas(configPath, schemaDir)
	if err != nil {
		return err
	}

	def, ok := registry.Lookup(schemaName)
	if !ok {
		return fmt.Errorf("unknown schema: %s", schemaName)
	}

	data, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	focus, model, err := export.Unframe(data)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	visible := resolveAxes(def.Shape, task, views, modes, roles)
	if shape.Fail(visible) {
		return fmt.Errorf("schema %s is not visible under the given tokens", schemaName)
	}

	trace, trimmed := shape.Validate(focus, visible, model)
	if !trace.Empty() {
		encoded, err := json.MarshalIndent(trace, "", "  ")
		if err != nil {
			return fmt.Errorf("encode trace: %w", err)
		}
		fmt.Fprintln(out, string(encoded))
		return fmt.Errorf("document does not satisfy schema %q", schemaName)
	}

	fmt.Fprintf(out, "%s satisfies schema %q (%d of %d statements retained)\n",
		focus.Text(), schemaName, len(trimmed), len(model))
	return nil
}

// explainCmd prints the SPARQL a schema's shape compiles to under the
// given axis tokens. With --path it also prints the anchor variable the
// path resolves to.
func explainCmd() *cobra.Command {
	var (
		schemaDir string
		task      string
		views     []string
		modes     []string
		roles     []string
		path      []string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "explain <schema>",
		Short: "Print the compiled SPARQL for a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runExplain(cmd.OutOrStdout(), configPath, schemaDir, args[0], task, views, modes, roles, path, limit)
		},
	}

	cmd.Flags().StringVar(&schemaDir, "schemas", "", "Schema directory (overrides config)")
	cmd.Flags().StringVar(&task, "task", storage.TaskBrowse, "Task token to resolve guards with")
	cmd.Flags().StringSliceVar(&views, "view", nil, "View tokens to resolve guards with")
	cmd.Flags().StringSliceVar(&modes, "mode", nil, "Mode tokens to resolve guards with")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role tokens to resolve guards with")
	cmd.Flags().StringSliceVar(&path, "path", nil, "Field path (edge IRIs) to resolve an anchor for")
	cmd.Flags().IntVar(&limit, "limit", 0, "LIMIT clause for the query (0 for none)")

	return cmd
}

func runExplain(out io.Writer, configPath, schemaDir, schemaName string, task string, views, modes, roles, path []string, limit int) error {
	registry, err := loadSchemas(configPath, schemaDir)
	if err != nil {
		return err
	}

	def, ok := registry.Lookup(schemaName)
	if !ok {
		return fmt.Errorf("unknown schema: %s", schemaName)
	}

	visible := resolveAxes(def.Shape, task, views, modes, roles)
	if shape.Fail(visible) {
		return fmt.Errorf("schema %s is not visible under the given tokens", schemaName)
	}

	if len(path) > 0 {
		anchor, err := sparql.Hook(visible, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# anchor %s\n", anchor.Var())
	}

	fmt.Fprint(out, storage.BuildSelect(sparql.Compile(visible, sparql.Root, true), limit))
	return nil
}

// loadSchemas fills a registry from the --schemas flag, falling back to the
// schema directory the layered config resolves.
func loadSchemas(configPath, schemaDir string) (*schema.Registry, error) {
	if schemaDir == "" {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		cfg, err := config.NewLoader(logger).Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		schemaDir = cfg.Schemas.Dir
	}

	registry := schema.NewRegistry()
	n, err := schema.Load(registry, schemaDir)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("no schemas found in %s", schemaDir)
	}
	return registry, nil
}

// resolveAxes applies guard tokens in the engine's axis order. Axes with
// no tokens still resolve so their guards close.
func resolveAxes(s shape.Shape, task string, views, modes, roles []string) shape.Shape {
	s = shape.Redact(s, storage.AxisTask, task)
	s = shape.Redact(s, storage.AxisView, views...)
	s = shape.Redact(s, storage.AxisMode, modes...)
	s = shape.Redact(s, storage.AxisRole, roles...)
	return s
}
