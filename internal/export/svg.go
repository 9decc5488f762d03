// Package export renders trajectories as standalone SVG plots.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/san-kum/odelab/internal/dynamo"
)

var palette = []string{"#00d7ff", "#ff5f87", "#afff5f", "#ffaf00", "#af87ff", "#5fffd7"}

type Point struct{ X, Y float64 }

// Series is one polyline in data coordinates.
type Series struct {
	Label  string
	Points []Point
}

// Plot sizes the output. Zero fields take defaults.
type Plot struct {
	Width, Height int
	Background    string
}

func (p Plot) withDefaults() Plot {
	if p.Width <= 0 {
		p.Width = 800
	}
	if p.Height <= 0 {
		p.Height = 400
	}
	if p.Background == "" {
		p.Background = "#0a0a0a"
	}
	return p
}

// TimeSeries builds one series per state component against time.
func TimeSeries(tr *dynamo.Trajectory, labels []string) []Series {
	if tr.Len() == 0 {
		return nil
	}
	dim := len(tr.Values[0])
	out := make([]Series, dim)
	for j := 0; j < dim; j++ {
		s := Series{Label: fmt.Sprintf("y%d", j), Points: make([]Point, tr.Len())}
		if j < len(labels) {
			s.Label = labels[j]
		}
		for i, t := range tr.Time {
			s.Points[i] = Point{t, tr.Values[i][j]}
		}
		out[j] = s
	}
	return out
}

// Phase builds the portrait of component i against component j.
func Phase(tr *dynamo.Trajectory, i, j int) (Series, error) {
	if tr.Len() > 0 {
		if dim := len(tr.Values[0]); i >= dim || j >= dim || i < 0 || j < 0 {
			return Series{}, dynamo.DimError("phase components", dim, max(i, j)+1)
		}
	}
	s := Series{Label: fmt.Sprintf("y%d/y%d", i, j), Points: make([]Point, tr.Len())}
	for k, y := range tr.Values {
		s.Points[k] = Point{y[i], y[j]}
	}
	return s, nil
}

// WriteSVG draws every series on shared axes with 10% padding. Non-finite
// points split a series into separate subpaths.
func WriteSVG(w io.Writer, plot Plot, series ...Series) error {
	plot = plot.withDefaults()

	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, p := range s.Points {
			if !finite(p) {
				continue
			}
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return fmt.Errorf("%w: nothing finite to plot", dynamo.ErrInvalidState)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	width, height := float64(plot.Width), float64(plot.Height)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, plot.Width, plot.Height, plot.Width, plot.Height, plot.Background)

	for n, s := range series {
		color := palette[n%len(palette)]
		var d strings.Builder
		pen := false
		for _, p := range s.Points {
			if !finite(p) {
				pen = false
				continue
			}
			x := (p.X - minX) / rangeX * width
			y := height - (p.Y-minY)/rangeY*height
			if pen {
				fmt.Fprintf(&d, " L%.1f,%.1f", x, y)
			} else {
				if d.Len() > 0 {
					d.WriteByte(' ')
				}
				fmt.Fprintf(&d, "M%.1f,%.1f", x, y)
				pen = true
			}
		}
		if d.Len() == 0 {
			continue
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="%s"><title>%s</title></path>
`, color, d.String(), escape(s.Label))
		fmt.Fprintf(&sb, `<text x="10" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 20+16*n, color, escape(s.Label))
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

func finite(p Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string { return escaper.Replace(s) }
