package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"renovationAi/internal/app"
	"renovationAi/internal/config"
	"renovationAi/internal/renovation"
	"renovationAi/internal/studio"
)

type renderOptions struct {
	ConfigPath  string
	Image       string
	Room        string
	Update      string
	Details     string
	OutDir      string
	Refinements []string
	Archive     bool
}

func newRootCmd() *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a renovation preview and PDF report from a room photo",
		Long: `Render edits a room photo according to a room and update category, writes the
after image and a before/after PDF report, and optionally archives the result.

Refinements are applied in order, each one on top of the previous result.`,
		Example: `  render --image kitchen.jpg --room Kitchen --update Flooring --details "white oak floors" --out ./out
  render --image bath.jpg --room Bathroom --update Paint --refine "warmer light" --refine "matte finish"`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			application, err := app.New(cmd.Context(), cfg, app.Options{QuietLogs: true})
			if err != nil {
				return err
			}
			defer application.Close()
			return runRender(cmd.Context(), application.Service, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.ConfigPath, "config", os.Getenv("RENOVATION_CONFIG"), "optional YAML config file")
	flags.StringVar(&opts.Image, "image", "", "room photo (JPEG, PNG, GIF or WebP)")
	flags.StringVar(&opts.Room, "room", "", "room category: Kitchen, Bathroom, Living Room, Patio, Bedroom")
	flags.StringVar(&opts.Update, "update", "", "update category: Flooring, Paint, Cabinets, Full Remodel")
	flags.StringVar(&opts.Details, "details", "", "free-text description of the desired change")
	flags.StringVar(&opts.OutDir, "out", ".", "output directory")
	flags.StringArrayVar(&opts.Refinements, "refine", nil, "follow-up instruction, repeatable")
	flags.BoolVar(&opts.Archive, "archive", false, "upload the report and images and record the project")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("update")

	return cmd
}

func runRender(ctx context.Context, svc *studio.Service, opts renderOptions, out io.Writer) error {
	req, err := renovation.NewGenerationRequest(opts.Room, opts.Update, opts.Details)
	if err != nil {
		return err
	}
	refinements := make([]renovation.Request, 0, len(opts.Refinements))
	for _, instruction := range opts.Refinements {
		refine, err := renovation.NewRefinementRequest(instruction)
		if err != nil {
			return err
		}
		refinements = append(refinements, refine)
	}

	photo, err := os.ReadFile(opts.Image)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	view, err := svc.Create()
	if err != nil {
		return err
	}
	id := view.ID
	defer func() { _ = svc.Delete(id) }()

	if _, err := svc.Capture(id, photo, renovation.SourceUpload); err != nil {
		return err
	}
	if view, err = svc.Generate(ctx, id, req); err != nil {
		return err
	}
	for i, refine := range refinements {
		if view, err = svc.Refine(ctx, id, refine); err != nil {
			return fmt.Errorf("refinement %d: %w", i+1, err)
		}
	}

	after, err := svc.Image(id, "after")
	if err != nil {
		return err
	}
	rep, err := svc.Report(id)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	afterPath := filepath.Join(opts.OutDir, "after.jpg")
	reportPath := filepath.Join(opts.OutDir, "renovation-report.pdf")
	if err := os.WriteFile(afterPath, after.Data, 0o644); err != nil {
		return fmt.Errorf("write after image: %w", err)
	}
	if err := os.WriteFile(reportPath, rep.PDF, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	fmt.Fprintf(out, "Summary: %s\n", view.Summary)
	if view.Rationale != "" {
		fmt.Fprintf(out, "Rationale: %s\n", view.Rationale)
	}
	for _, m := range view.Materials {
		fmt.Fprintf(out, "- %s: %s\n", m.Item, m.URL)
	}
	fmt.Fprintf(out, "After image: %s\nReport: %s\n", afterPath, reportPath)

	if opts.Archive {
		project, err := svc.Archive(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Archived project %s (%s)\n", project.ID, project.Report.URL)
	}
	return nil
}
