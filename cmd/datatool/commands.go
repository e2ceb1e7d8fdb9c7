package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Skufu/GoSymptom/internal/logging"
	"github.com/Skufu/GoSymptom/internal/model"
	"github.com/Skufu/GoSymptom/internal/predict"
	"github.com/Skufu/GoSymptom/internal/reference"
	"github.com/Skufu/GoSymptom/internal/symptom"
)

func newExtractSymptomsCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "extract-symptoms",
		Short: "Flatten the Symptom_* columns of a training table into the symptom list",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(input)
			if err != nil {
				return err
			}
			defer in.Close()

			names, err := symptom.ExtractFromTable(in)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			if err := writeFileAtomic(output, func(f *os.File) error {
				return symptom.WriteList(f, names)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d symptoms to %s\n", len(names), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", filepath.Join("data", "symptoms_df.csv"), "training table with Symptom_* columns")
	cmd.Flags().StringVar(&output, "output", filepath.Join("data", "symptoms.csv"), "symptom list to write")
	return cmd
}

func newEncodeArtifactCmd() *cobra.Command {
	var input, output string
	var validate bool
	cmd := &cobra.Command{
		Use:   "encode-artifact",
		Short: "Write a model bundle as base64 text",
		RunE: func(cmd *cobra.Command, args []string) error {
			if validate {
				if _, err := model.Load(cmd.Context(), model.FileSource{Path: input}); err != nil {
					return err
				}
			}
			in, err := os.Open(input)
			if err != nil {
				return err
			}
			defer in.Close()

			if err := writeFileAtomic(output, func(f *os.File) error {
				return model.EncodeBase64(f, in)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "encoded %s to %s\n", input, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", filepath.Join("ml_model", "model.json"), "model bundle, optionally compressed")
	cmd.Flags().StringVar(&output, "output", filepath.Join("ml_model", "model_base64.txt"), "base64 text to write")
	cmd.Flags().BoolVar(&validate, "validate", true, "decode the bundle before encoding it")
	return cmd
}

type artifactFlags struct {
	path    string
	base64  bool
	dataDir string
}

func (f *artifactFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "artifact", filepath.Join("ml_model", "model_base64.txt"), "model artifact")
	cmd.Flags().BoolVar(&f.base64, "base64", true, "the artifact is base64 text")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "data", "directory with the reference CSV tables")
}

func (f *artifactFlags) load(ctx context.Context) (*model.Artifact, *reference.Tables, error) {
	var src model.ArtifactSource = model.FileSource{Path: f.path}
	if f.base64 {
		src = model.NewBase64File(f.path)
	}
	artifact, err := model.Load(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	tables, err := reference.LoadCSV(ctx, f.dataDir)
	if err != nil {
		return nil, nil, err
	}
	return artifact, tables, nil
}

func newCheckCmd() *cobra.Command {
	var flags artifactFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify every model label has a row in all reference tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact, tables, err := flags.load(cmd.Context())
			if err != nil {
				return err
			}
			issues := reference.CheckConsistency(artifact.Labels.Labels(), tables)
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), issue)
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d of %d labels lack reference data", len(issues), artifact.Labels.Len())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d labels, %d symptoms\n", artifact.Labels.Len(), artifact.Vocabulary.Len())
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newPredictCmd() *cobra.Command {
	var flags artifactFlags
	var policy predict.Policy
	cmd := &cobra.Command{
		Use:   "predict [symptom...]",
		Short: "Run one prediction and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			artifact, tables, err := flags.load(cmd.Context())
			if err != nil {
				return err
			}
			p := predict.New(predict.Context{Artifact: artifact, Tables: tables}, policy, logging.Discard())
			result, err := p.Predict(args)
			if errors.Is(err, predict.ErrNoSymptoms) {
				return errors.New(predict.NoSymptomsMessage)
			}
			if err != nil {
				return err
			}
			enc := gojson.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&policy.AbstainWhenUnrecognized, "abstain-unrecognized", false, "abstain when no symptom is known to the model")
	cmd.Flags().Float64Var(&policy.MinConfidence, "min-confidence", 0, "abstain below this confidence")
	return cmd
}

func newLoadDBCmd() *cobra.Command {
	var dataDir, databaseURL string
	cmd := &cobra.Command{
		Use:   "load-db",
		Short: "Replace the Postgres reference tables with the CSV tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("--database-url or DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			tables, err := reference.LoadCSV(ctx, dataDir)
			if err != nil {
				return err
			}
			pool, err := pgxpool.New(ctx, databaseURL)
			if err != nil {
				return fmt.Errorf("create pool: %w", err)
			}
			defer pool.Close()

			if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
				return reference.SavePostgres(ctx, tx, tables)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d diseases\n", tables.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "directory with the reference CSV tables")
	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	return cmd
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
