package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/kilianp07/voi/core/model"
)

// WriteMarkdown renders a human-readable summary of the report.
func WriteMarkdown(w io.Writer, rep *model.Report) error {
	var b bytes.Buffer
	est := rep.Estimate
	fmt.Fprintf(&b, "# Value of information report\n\n")
	fmt.Fprintf(&b, "Run `%s`, %d building(s), finished %s.\n\n", rep.RunID, rep.Buildings, rep.FinishedAt.Format("2006-01-02 15:04:05 MST"))

	fmt.Fprintf(&b, "## Estimate\n\n")
	fmt.Fprintf(&b, "| Quantity | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Prior cost | %.2f |\n", est.PriorCost)
	fmt.Fprintf(&b, "| Pre-posterior cost | %.2f |\n", est.PreposteriorCost)
	fmt.Fprintf(&b, "| VoI (direct) | %.2f ± %.2f |\n", est.VoIDirect, est.StdError)
	fmt.Fprintf(&b, "| VoI (regret) | %.2f ± %.2f |\n", est.VoIRegret, est.RegretStdError)
	fmt.Fprintf(&b, "| Posterior problems | %d |\n\n", est.Samples)

	fmt.Fprintf(&b, "Prior design: %s\n\n", joinFloats(rep.PriorDesign))
	fmt.Fprintf(&b, "Posterior cost median %.2f, 5th percentile %.2f, 95th percentile %.2f.\n\n",
		rep.Summary.Median, rep.Summary.P5, rep.Summary.P95)

	if v := rep.Validation; v != nil {
		fmt.Fprintf(&b, "## Surrogate validation\n\n")
		fmt.Fprintf(&b, "| Problem | Surrogate | Ground truth | Error %% |\n|---|---:|---:|---:|\n")
		for _, p := range append([]model.ValidationPoint{v.Prior}, v.Posterior...) {
			fmt.Fprintf(&b, "| %s | %.2f ± %.2f | %.2f ± %.2f | %.3f |\n", p.Problem, p.SurrogateCost, p.SurrogateStd, p.GroundTruth, p.GroundTruthStd, p.ErrorPercent)
		}
		fmt.Fprintf(&b, "\nMean absolute error: %.3f%%\n\n", v.MeanAbsErrPercent)
	}

	if len(rep.Warnings) > 0 {
		fmt.Fprintf(&b, "## Warnings\n\n")
		for _, wn := range rep.Warnings {
			fmt.Fprintf(&b, "- %s\n", wn.String())
		}
		b.WriteString("\n")
	}
	_, err := w.Write(b.Bytes())
	return err
}

// WriteHTML renders the markdown summary as a standalone HTML page.
func WriteHTML(w io.Writer, rep *model.Report) error {
	var md bytes.Buffer
	if err := WriteMarkdown(&md, rep); err != nil {
		return err
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "VoI report " + rep.RunID,
	})
	_, err := w.Write(markdown.ToHTML(md.Bytes(), p, r))
	return err
}
