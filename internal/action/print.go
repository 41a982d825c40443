package action

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/process"
)

const printSourceName = "print:source"

// PrintJob is one combined print request.
type PrintJob struct {
	Printer string
	Title   string
	Files   []string
}

// Printer submits print jobs.
type Printer interface {
	Print(ctx context.Context, job PrintJob) error
}

// LPRPrinter prints through the lpr command.
type LPRPrinter struct {
	runner process.Runner
	logger zerolog.Logger
}

// NewLPRPrinter constructs a printer backed by lpr.
func NewLPRPrinter(runner process.Runner, logger zerolog.Logger) *LPRPrinter {
	return &LPRPrinter{runner: runner, logger: logger.With().Str("component", "lpr_printer").Logger()}
}

// Print waits for lpr to accept the job.
func (p *LPRPrinter) Print(ctx context.Context, job PrintJob) error {
	args := []string{"lpr"}
	if job.Printer != "" {
		args = append(args, "-P", shellQuote(job.Printer))
	}
	if job.Title != "" {
		args = append(args, "-T", shellQuote(job.Title))
	}
	args = append(args, shellJoin(job.Files))

	if _, err := p.runner.Run(ctx, process.Command{Line: strings.Join(args, " ")}); err != nil {
		return err
	}
	p.logger.Info().Str("printer", job.Printer).Int("files", len(job.Files)).Msg("print job submitted")
	return nil
}

// PrintProvider prints handin sources.
type PrintProvider struct{}

func (PrintProvider) Namespace() string { return "print" }

func (PrintProvider) Descriptions() []Description {
	return []Description{
		NewDescription("print", "source", "Print the selected source files of every group in one job", newPrintSource).
			WithProperties(
				Property{Key: "extensions", Description: "Comma separated extensions; _ selects files without one", Required: true},
				Property{Key: "printer", Description: "Printer name, defaults to the configured printer"},
			).
			WithModes([]Mode{ModePrint}, ModePrint),
	}
}

type printSource struct {
	env        Environment
	values     Values
	extensions []string
}

func newPrintSource(env Environment, values Values) (Action, error) {
	return &printSource{env: env, values: values, extensions: values.List("extensions")}, nil
}

func (a *printSource) Perform(ctx context.Context, part models.DistributablePart, group models.Group) error {
	return a.PerformBatch(ctx, part, []models.Group{group})
}

// PerformBatch unarchives each group in order and then issues a single print request.
func (a *printSource) PerformBatch(ctx context.Context, part models.DistributablePart, groups []models.Group) error {
	if a.env.Printer == nil {
		return failBatch(printSourceName, part, executionFailure(errNotConfigured("printer")))
	}

	var files []string
	for _, group := range groups {
		record, err := a.env.Unarchiver.Unarchive(ctx, part, group)
		if err != nil {
			return fail(printSourceName, part, group, err)
		}
		groupFiles, err := filesWithExtensions(record.Dir, a.extensions)
		if err != nil {
			return fail(printSourceName, part, group, executionFailure(err))
		}
		files = append(files, groupFiles...)
	}

	if len(files) == 0 {
		a.env.Logger.Warn().Int("groups", len(groups)).Msg("nothing to print")
		return nil
	}

	job := PrintJob{
		Printer: a.values.GetOr("printer", a.env.DefaultPrinter),
		Title:   part.AssignmentName() + " - " + part.Name,
		Files:   files,
	}
	if err := a.env.Printer.Print(ctx, job); err != nil {
		return failBatch(printSourceName, part, executionFailure(err))
	}
	return nil
}
