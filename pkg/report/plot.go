package report

import (
	"image/color"
	"io"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var ErrNoSweep = errors.New("results hold no frequency sweep")

// Bode draws magnitude (dB) over phase for the named signals of a frequency
// sweep. Signals are result key stems such as "V(out)" or "LOOPGAIN"; none
// means every stem with a _MAG key.
type Bode struct {
	Title   string
	Signals []string
	Width   vg.Length
	Height  vg.Length
}

func NewBode(title string, signals ...string) *Bode {
	return &Bode{Title: title, Signals: signals, Width: 6 * vg.Inch, Height: 6 * vg.Inch}
}

func (b *Bode) signals(results map[string][]float64) []string {
	if len(b.Signals) > 0 {
		return b.Signals
	}
	names := keys(results, func(name string) bool { return strings.HasSuffix(name, "_MAG") })
	for i := range names {
		names[i] = strings.TrimSuffix(names[i], "_MAG")
	}
	return names
}

func (b *Bode) plots(results map[string][]float64) (mag, phase *plot.Plot, err error) {
	freqs, ok := results["FREQ"]
	if !ok || len(freqs) == 0 {
		return nil, nil, ErrNoSweep
	}

	mag = plot.New()
	mag.Title.Text = b.Title
	mag.Y.Label.Text = "Magnitude (dB)"
	phase = plot.New()
	phase.X.Label.Text = "Frequency (Hz)"
	phase.Y.Label.Text = "Phase (deg)"

	logX := freqs[0] > 0
	for _, p := range []*plot.Plot{mag, phase} {
		p.Add(plotter.NewGrid())
		if logX {
			p.X.Scale = plot.LogScale{}
			p.X.Tick.Marker = plot.LogTicks{}
		}
	}

	signals := b.signals(results)
	if len(signals) == 0 {
		return nil, nil, ErrNoSweep
	}
	for i, name := range signals {
		m, okm := results[name+"_MAG"]
		ph, okp := results[name+"_PHASE"]
		if !okm || !okp {
			return nil, nil, errors.Errorf("no sweep data for %s", name)
		}

		magXY := make(plotter.XYs, len(freqs))
		phaseXY := make(plotter.XYs, len(freqs))
		for k, f := range freqs {
			magXY[k].X, magXY[k].Y = f, decibel(m[k])
			phaseXY[k].X, phaseXY[k].Y = f, ph[k]
		}

		for _, s := range []struct {
			p   *plot.Plot
			xys plotter.XYs
		}{{mag, magXY}, {phase, phaseXY}} {
			line, err := plotter.NewLine(s.xys)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "plotting %s", name)
			}
			line.Color = plotutil.Color(i)
			s.p.Add(line)
			if s.p == mag {
				s.p.Legend.Add(name, line)
			}
		}
	}
	return mag, phase, nil
}

func decibel(v float64) float64 {
	return 20 * math.Log10(math.Max(v, 1e-30))
}

// WriteTo renders the plot as PNG.
func (b *Bode) WriteTo(w io.Writer, results map[string][]float64) error {
	mag, phase, err := b.plots(results)
	if err != nil {
		return err
	}

	img := vgimg.NewWith(vgimg.UseWH(b.Width, b.Height), vgimg.UseBackgroundColor(color.White))
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadX: vg.Millimeter, PadY: vg.Millimeter}
	canvases := plot.Align([][]*plot.Plot{{mag}, {phase}}, tiles, dc)
	mag.Draw(canvases[0][0])
	phase.Draw(canvases[1][0])

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return errors.Wrap(err, "writing png")
	}
	return nil
}

// Save writes the plot to a PNG file.
func (b *Bode) Save(path string, results map[string][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating plot file")
	}
	if err := b.WriteTo(f, results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
