package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"

	"github.com/bankops/bankctl/internal/model"
)

// Printer renders run reports and status tables for the terminal. Output is
// colorized through fatih/color, which degrades to plain text when stdout is
// not a TTY.
type Printer struct {
	out io.Writer

	pass    *color.Color
	fail    *color.Color
	warn    *color.Color
	faint   *color.Color
	header  *color.Color
	section *color.Color
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:     out,
		pass:    color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		faint:   color.New(color.FgHiBlack),
		header:  color.New(color.FgCyan, color.Bold),
		section: color.New(color.FgYellow, color.Bold),
	}
}

// Summary prints the full report of a run: stages, test suites, validation
// targets, the failure list, and the overall verdict.
func (p *Printer) Summary(r *model.RunReport) {
	fmt.Fprintln(p.out)
	p.header.Fprintf(p.out, "Deployment summary\n")
	fmt.Fprintf(p.out, "Run:         %s\n", r.ID)
	fmt.Fprintf(p.out, "Environment: %s\n", r.Environment)
	fmt.Fprintf(p.out, "Stack:       %s\n", r.StackName)
	if r.LogPath != "" {
		fmt.Fprintf(p.out, "Log:         %s\n", r.LogPath)
	}

	for _, stage := range r.Stages {
		fmt.Fprintln(p.out)
		p.section.Fprintf(p.out, "Stage %s (%s)\n", stage.Name, formatDuration(stage.Elapsed))
		for _, step := range stage.Steps {
			p.stepLine(step)
		}
	}

	if len(r.Tests) > 0 {
		fmt.Fprintln(p.out)
		p.section.Fprintf(p.out, "Test suites\n")
		for _, tr := range r.Tests {
			p.suiteLine(tr)
		}
	}

	if r.Validation != nil {
		fmt.Fprintln(p.out)
		p.section.Fprintf(p.out, "Validation gate (%s)\n", formatDuration(r.Validation.Elapsed))
		for _, t := range r.Validation.Targets {
			p.targetLine(t)
		}
	}

	p.failureList(r)

	steps := lo.FlatMap(r.Stages, func(s model.StageResult, _ int) []model.StepResult {
		return s.Steps
	})
	counts := lo.CountValuesBy(steps, func(s model.StepResult) model.Outcome {
		return s.Outcome
	})
	fmt.Fprintln(p.out)
	p.section.Fprintf(p.out, "📊 %d healthy, %d failed, %d degraded, %d skipped in %s\n",
		counts[model.OutcomePass], counts[model.OutcomeFail],
		counts[model.OutcomeBestEffortFail], counts[model.OutcomeSkipped],
		formatDuration(r.Duration()))
	if r.Status == model.OutcomePass {
		color.New(color.FgGreen, color.Bold).Fprintln(p.out, "Deployment succeeded")
	} else {
		color.New(color.FgRed, color.Bold).Fprintln(p.out, "Deployment failed")
	}
}

func (p *Printer) stepLine(step model.StepResult) {
	mark, c := p.outcomeMark(step.Outcome)
	c.Fprintf(p.out, "  %s %-14s", mark, step.Service)
	switch step.Outcome {
	case model.OutcomePass:
		fmt.Fprintf(p.out, " healthy after %d attempt%s (%s)",
			step.Attempts, plural(step.Attempts), formatDuration(step.Elapsed))
	case model.OutcomeSkipped:
		p.faint.Fprintf(p.out, " skipped")
		if step.Message != "" {
			p.faint.Fprintf(p.out, " (%s)", step.Message)
		}
	default:
		fmt.Fprintf(p.out, " %s", step.Message)
	}
	fmt.Fprintln(p.out)
}

func (p *Printer) suiteLine(tr model.TestSuiteResult) {
	mark, c := p.outcomeMark(tr.Outcome)
	c.Fprintf(p.out, "  %s %-12s", mark, tr.Suite)
	if tr.Outcome == model.OutcomeSkipped {
		p.faint.Fprintf(p.out, " skipped")
	} else {
		fmt.Fprintf(p.out, " %s", formatDuration(tr.Elapsed))
	}
	if tr.Message != "" && tr.Outcome == model.OutcomeFail {
		fmt.Fprintf(p.out, "  %s", tr.Message)
	}
	fmt.Fprintln(p.out)
}

func (p *Printer) targetLine(t model.TargetResult) {
	mark, c := p.outcomeMark(t.Outcome)
	c.Fprintf(p.out, "  %s %-24s", mark, t.Name)
	p.faint.Fprintf(p.out, " %-16s", t.Kind)
	if t.Message != "" {
		fmt.Fprintf(p.out, " %s", t.Message)
	}
	fmt.Fprintln(p.out)
}

// failureList prints one line per failed step, suite, and validation target,
// so the operator does not have to scan the stage blocks after a bad run.
func (p *Printer) failureList(r *model.RunReport) {
	var lines []string
	for _, stage := range r.Stages {
		for _, step := range stage.Steps {
			if step.Outcome == model.OutcomeFail {
				lines = append(lines, fmt.Sprintf("step %s/%s: %s", stage.Name, step.Service, step.Message))
			}
		}
	}
	for _, tr := range r.Tests {
		if tr.Outcome == model.OutcomeFail {
			lines = append(lines, fmt.Sprintf("suite %s: %s", tr.Suite, tr.Message))
		}
	}
	if r.Validation != nil {
		for _, name := range r.Validation.FailedTargets() {
			lines = append(lines, fmt.Sprintf("validation target %s", name))
		}
	}
	if len(lines) == 0 {
		return
	}

	fmt.Fprintln(p.out)
	color.New(color.FgRed, color.Bold).Fprintf(p.out, "Failures (%d)\n", len(lines))
	for _, line := range lines {
		p.fail.Fprintf(p.out, "  • %s\n", line)
	}
}

// Gate prints a validation gate result on its own, outside a full summary.
func (p *Printer) Gate(vr *model.ValidationResult) {
	p.section.Fprintf(p.out, "Validation gate (%s)\n", formatDuration(vr.Elapsed))
	for _, t := range vr.Targets {
		p.targetLine(t)
	}
	failed := vr.FailedTargets()
	if len(failed) == 0 {
		color.New(color.FgGreen, color.Bold).Fprintf(p.out, "All %d targets healthy\n", len(vr.Targets))
	} else {
		color.New(color.FgRed, color.Bold).Fprintf(p.out, "%d of %d targets failed\n", len(failed), len(vr.Targets))
	}
}

// ServiceRow is one line of the environment status table.
type ServiceRow struct {
	Service string
	State   string
	Health  model.HealthStatus
	Uptime  time.Duration
	Detail  string
}

// StatusTable prints the live status of every service in an environment.
func (p *Printer) StatusTable(environment string, rows []ServiceRow) {
	p.header.Fprintf(p.out, "Environment %s\n", environment)
	fmt.Fprintf(p.out, "Status as of %s\n\n", time.Now().Format("15:04:05"))
	fmt.Fprintf(p.out, "%-16s %-10s %-14s %-10s %s\n", "SERVICE", "STATE", "HEALTH", "UPTIME", "DETAIL")

	for _, row := range rows {
		fmt.Fprintf(p.out, "%-16s %-10s ", row.Service, row.State)
		glyph, c := p.healthMark(row.Health)
		c.Fprintf(p.out, "%-14s", glyph+" "+string(row.Health))
		uptime := "-"
		if row.Uptime > 0 {
			uptime = formatDuration(row.Uptime)
		}
		fmt.Fprintf(p.out, " %-10s %s\n", uptime, row.Detail)
	}

	healthy := lo.CountBy(rows, func(r ServiceRow) bool { return r.Health == model.Healthy })
	p.section.Fprintf(p.out, "\n📊 %d/%d services healthy\n", healthy, len(rows))
}

// RunList prints one line per stored run, newest first.
func (p *Printer) RunList(reports []*model.RunReport) {
	if len(reports) == 0 {
		p.faint.Fprintln(p.out, "no recorded runs")
		return
	}
	fmt.Fprintf(p.out, "%-36s %-12s %-8s %-21s %s\n", "RUN", "ENV", "STATUS", "STARTED", "DURATION")
	for _, r := range reports {
		fmt.Fprintf(p.out, "%-36s %-12s ", r.ID, r.Environment)
		if r.Status == model.OutcomePass {
			p.pass.Fprintf(p.out, "%-8s", "pass")
		} else {
			p.fail.Fprintf(p.out, "%-8s", "fail")
		}
		fmt.Fprintf(p.out, " %-21s %s\n", r.StartedAt.Format("2006-01-02 15:04:05"), formatDuration(r.Duration()))
	}
}

// RunDetail prints a stored run in full, including the state-machine trace.
func (p *Printer) RunDetail(r *model.RunReport) {
	p.Summary(r)
	if len(r.States) == 0 {
		return
	}
	fmt.Fprintln(p.out)
	p.section.Fprintf(p.out, "State trace\n")
	for i, rec := range r.States {
		fmt.Fprintf(p.out, "  %2d. %-16s %s\n", i+1, rec.State, rec.EnteredAt.Format(time.RFC3339))
	}
}

func (p *Printer) outcomeMark(o model.Outcome) (string, *color.Color) {
	switch o {
	case model.OutcomePass:
		return "✓", p.pass
	case model.OutcomeFail:
		return "✗", p.fail
	case model.OutcomeBestEffortFail:
		return "!", p.warn
	default:
		return "-", p.faint
	}
}

func (p *Printer) healthMark(h model.HealthStatus) (string, *color.Color) {
	switch h {
	case model.Healthy:
		return "🟢", p.pass
	case model.Unhealthy:
		return "🔴", p.fail
	default:
		return "🟡", p.warn
	}
}

func formatDuration(d time.Duration) string {
	if d >= time.Minute {
		return d.Round(time.Second).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
