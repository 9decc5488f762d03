package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/odelab/internal/dynamo"
)

// MaxCharts caps how many components Charts draws.
const MaxCharts = 6

// Charts renders one asciigraph line chart per state component, captioned
// with its label. Non-finite samples are drawn as gaps.
func Charts(tr *dynamo.Trajectory, labels []string, width, height int) []string {
	if tr.Len() == 0 {
		return nil
	}
	dim := min(len(tr.Values[0]), MaxCharts)
	out := make([]string, 0, dim)
	for j := 0; j < dim; j++ {
		data := tr.Component(j)
		for i, v := range data {
			if math.IsInf(v, 0) {
				data[i] = math.NaN()
			}
		}
		label := fmt.Sprintf("y%d", j)
		if j < len(labels) {
			label = labels[j]
		}
		out = append(out, asciigraph.Plot(data,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(label+" vs time"),
		))
	}
	return out
}

// PhasePortrait draws component j against component i on a Braille canvas.
func PhasePortrait(tr *dynamo.Trajectory, i, j, width, height int) (string, error) {
	if tr.Len() == 0 {
		return "", fmt.Errorf("no data to plot")
	}
	if dim := len(tr.Values[0]); i < 0 || j < 0 || i >= dim || j >= dim {
		return "", dynamo.DimError("phase axes", dim, max(i, j)+1)
	}
	c := NewCanvas(width, height)
	c.DrawPath(tr.Component(i), tr.Component(j))
	return c.String(), nil
}
