package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/infra"
)

func newSubmitCmd(env *config.EnvConfig) *cobra.Command {
	var (
		filePath    string
		text        string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Upload an artifact and create a job for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(text) < 3 {
				return fmt.Errorf("--text must be at least 3 characters")
			}

			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("failed to open artifact: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to stat artifact: %w", err)
			}

			name := filepath.Base(filePath)
			if contentType == "" {
				contentType = mime.TypeByExtension(filepath.Ext(name))
			}
			if contentType == "" {
				contentType = "application/octet-stream"
			}

			svc := infra.InitUploadService(env)
			record, err := svc.Submit(cmd.Context(), name, contentType, f, info.Size(), text)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "job %s submitted (%s)\n", record.ID, record.ArtifactReference)
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "artifact to upload")
	cmd.Flags().StringVar(&text, "text", "", "text input for the job")
	cmd.Flags().StringVar(&contentType, "content-type", "", "artifact content type (default: from extension)")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}
