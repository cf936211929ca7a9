package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bobarin/director/internal/config"
	"github.com/bobarin/director/internal/director"
	"github.com/bobarin/director/internal/models"
	"github.com/bobarin/director/internal/production"
	"github.com/bobarin/director/internal/services"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type produceOptions struct {
	topic         string
	scenes        int
	language      string
	outDir        string
	seo           bool
	thumbnail     bool
	thumbnailText string
	aspectRatio   string
}

func newProduceCommand() *cobra.Command {
	var opts produceOptions

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Generate a full script, optionally with SEO assets and a thumbnail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("scenes") {
				opts.scenes = cfg.DefaultTotalScenes
			}
			return runProduce(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.topic, "topic", "t", "", "Story topic")
	flags.IntVarP(&opts.scenes, "scenes", "n", models.DefaultTotalScenes, "Total number of scenes (1-100)")
	flags.StringVarP(&opts.language, "lang", "l", "", "Output language: en or vi (default DEFAULT_LANGUAGE)")
	flags.StringVarP(&opts.outDir, "out", "o", ".", "Directory for the exported files")
	flags.BoolVar(&opts.seo, "seo", false, "Generate SEO assets after the script")
	flags.BoolVar(&opts.thumbnail, "thumbnail", false, "Generate a thumbnail (implies --seo)")
	flags.StringVar(&opts.thumbnailText, "thumbnail-text", "", "Thumbnail overlay text (default: first SEO suggestion)")
	flags.StringVar(&opts.aspectRatio, "aspect", "", "Thumbnail aspect ratio (default DEFAULT_ASPECT_RATIO)")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func runProduce(ctx context.Context, out io.Writer, cfg *config.Config, opts produceOptions) error {
	lang := cfg.DefaultLanguage
	if opts.language != "" {
		parsed, ok := models.ParseLanguage(opts.language)
		if !ok {
			return fmt.Errorf("unsupported language %q", opts.language)
		}
		lang = parsed
	}

	dir, err := newDirector(ctx, cfg)
	if err != nil {
		return err
	}

	controller := production.NewController(production.NewMemoryStore(), dir, dir, dir,
		production.WithDefaultLanguage(cfg.DefaultLanguage),
		production.WithThumbnailDefaults(dir.ImageModel(), dir.AspectRatio()),
		production.WithObserver(progressPrinter(out)),
	)

	p, err := controller.Create(ctx, opts.topic, opts.scenes, lang)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Producing %q: %d scenes in %d batches\n", p.State.Title, p.State.TotalScenes, models.BatchCount(p.State.TotalScenes))

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if runErr := controller.Produce(ctx, p.ID, opts.topic, opts.scenes); runErr != nil {
		// Keep what was generated before the failure
		if path, err := writeExport(ctx, controller, p.ID, opts.outDir); err == nil && path != "" {
			fmt.Fprintf(out, "Partial script written to %s\n", path)
		}
		return runErr
	}

	if opts.seo || opts.thumbnail {
		if err := controller.GenerateSeo(ctx, p.ID); err != nil {
			return err
		}
		fmt.Fprintln(out, "SEO assets ready")
	}

	path, err := writeExport(ctx, controller, p.ID, opts.outDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Script written to %s\n", path)

	if opts.thumbnail {
		req := models.ThumbnailRequest{Text: opts.thumbnailText, AspectRatio: opts.aspectRatio}
		if err := controller.GenerateThumbnail(ctx, p.ID, req); err != nil {
			return err
		}
		path, err := writeThumbnail(ctx, controller, p.ID, opts.outDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Thumbnail written to %s\n", path)
	}

	return nil
}

func newDirector(ctx context.Context, cfg *config.Config) (*director.Director, error) {
	imageSvc, err := services.NewGeminiService(ctx, cfg.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("create image client: %w", err)
	}

	var textSvc services.StructuredGenerator = imageSvc
	if cfg.ModelProvider == config.ProviderOpenAI {
		textSvc = services.NewOpenAIService(cfg.OpenAIKey)
	} else if cfg.GeminiKey != cfg.ImageKey {
		if textSvc, err = services.NewGeminiService(ctx, cfg.GeminiKey); err != nil {
			return nil, fmt.Errorf("create Gemini client: %w", err)
		}
	}

	return director.New(textSvc, imageSvc, director.Config{
		ScriptModel: cfg.ScriptModel,
		SeoModel:    cfg.SeoModel,
		ImageModel:  cfg.ImageModel,
		AspectRatio: cfg.AspectRatio,
		Retry:       cfg.RetryPolicy(),
	}), nil
}

func progressPrinter(out io.Writer) production.Observer {
	last := -1
	return func(p *models.Production) {
		n := len(p.State.Scenes)
		if !p.State.IsGenerating || n == last {
			return
		}
		last = n
		fmt.Fprintf(out, "  %3d/%d scenes (%.0f%%)\n", n, p.State.TotalScenes, p.State.Progress())
	}
}

// writeExport writes the export document; an empty script writes nothing.
func writeExport(ctx context.Context, controller *production.Controller, id uuid.UUID, outDir string) (string, error) {
	doc, err := controller.Export(ctx, id)
	if err != nil {
		return "", err
	}
	if len(doc.Scenes) == 0 {
		return "", nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	path := filepath.Join(outDir, director.ExportFilename(doc.Project))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

func writeThumbnail(ctx context.Context, controller *production.Controller, id uuid.UUID, outDir string) (string, error) {
	p, err := controller.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if p.Thumbnail == nil {
		return "", fmt.Errorf("no thumbnail generated")
	}
	_, data, err := director.DecodeDataURI(p.Thumbnail.DataURI)
	if err != nil {
		return "", err
	}
	path := filepath.Join(outDir, director.ThumbnailFilename(p.Thumbnail.Text))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return path, nil
}
