package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/quizlens/internal/ingest"
	"github.com/sells-group/quizlens/internal/model"
	"github.com/sells-group/quizlens/internal/store"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage context documents injected into prompts",
}

var contextAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Extract text from a PDF, .txt or .md file and save it as context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		env, err := initEnv(ctx, "settings")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		ext, err := ingest.NewExtractor(cfg.Ingest)
		if err != nil {
			return err
		}
		name := filepath.Base(path)
		text, err := ext.ExtractText(ctx, name, data)
		if err != nil {
			return err
		}

		doc, err := env.Store.AddDocument(ctx, model.ContextDocument{
			Name:          name,
			ExtractedText: text,
			SizeBytes:     int64(len(data)),
		})
		if err != nil {
			return err
		}
		zap.L().Info("context document added", zap.String("id", doc.ID), zap.String("name", doc.Name))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s, %d characters)\n", doc.Name, doc.ID, len(text))
		return err
	},
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved context documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "settings")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := env.Store.GetSettings(ctx)
		if err != nil {
			return err
		}

		t := table.New().Border(lipgloss.RoundedBorder()).Headers("ID", "NAME", "SIZE", "UPLOADED")
		for _, d := range s.Documents {
			t.Row(d.ID, d.Name, fmt.Sprintf("%d B", d.SizeBytes), d.UploadedAt.Local().Format(time.DateTime))
		}
		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintln(out, t.Render()); err != nil {
			return err
		}
		state := "disabled"
		if s.CustomContextEnabled {
			state = "enabled"
		}
		_, err = fmt.Fprintf(out, "context injection: %s\n", state)
		return err
	},
}

var contextRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a context document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "settings")
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeleteDocument(ctx, args[0]); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
		return err
	},
}

func contextToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s context injection", map[bool]string{true: "Enable", false: "Disable"}[enabled]),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := initEnv(ctx, "settings")
			if err != nil {
				return err
			}
			defer env.Close()

			value := fmt.Sprint(enabled)
			if err := env.Store.SetValue(ctx, store.KeyCustomContextEnabled, value); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", store.KeyCustomContextEnabled, value)
			return err
		},
	}
}

func init() {
	contextCmd.AddCommand(
		contextAddCmd,
		contextListCmd,
		contextRemoveCmd,
		contextToggleCmd("enable", true),
		contextToggleCmd("disable", false),
	)
	rootCmd.AddCommand(contextCmd)
}
