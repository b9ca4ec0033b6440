// Package report prints analysis results and plots frequency sweeps.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/edp1096/toy-circuit/pkg/util"
)

func keys(results map[string][]float64, keep func(string) bool) []string {
	var out []string
	for name := range results {
		if keep(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func isSignal(name string) bool {
	return strings.HasPrefix(name, "V(") || strings.HasPrefix(name, "I(")
}

// Fprint writes results as a table. The layout follows the keys present:
// FREQ marks a frequency sweep, SWEEP1 a DC sweep, LOOPGAIN a DC loop gain
// and anything else an operating point.
func Fprint(w io.Writer, results map[string][]float64) {
	fmt.Fprintln(w, "\nAnalysis Results:")
	fmt.Fprintln(w, "================")

	switch {
	case has(results, "FREQ") && has(results, "ONOISE"):
		printNoise(w, results)
	case has(results, "FREQ"):
		printAC(w, results)
	case has(results, "SWEEP1"):
		printDC(w, results)
	case has(results, "LOOPGAIN"):
		printLoopGain(w, results)
	default:
		printOP(w, results)
	}
}

func has(results map[string][]float64, key string) bool {
	_, ok := results[key]
	return ok
}

func printAC(w io.Writer, results map[string][]float64) {
	freqs := results["FREQ"]
	fmt.Fprintf(w, "\nAC Analysis Results (%d frequency points):\n", len(freqs))
	fmt.Fprintln(w, "Frequency      Magnitude/Phase")
	fmt.Fprintln(w, "-----------------------------------------------------------------------------")

	names := keys(results, func(name string) bool { return strings.HasSuffix(name, "_MAG") })
	for i := range names {
		names[i] = strings.TrimSuffix(names[i], "_MAG")
	}

	for i, freq := range freqs {
		fmt.Fprintf(w, "%-13s", util.FormatFrequency(freq))
		for _, name := range names {
			mag, phase := results[name+"_MAG"], results[name+"_PHASE"]
			if i < len(mag) && i < len(phase) {
				fmt.Fprintf(w, "%s  ", util.FormatMagnitudePhase(name, mag[i], phase[i]))
			}
		}
		fmt.Fprintln(w)
	}
}

func printNoise(w io.Writer, results map[string][]float64) {
	freqs := results["FREQ"]
	onoise := results["ONOISE"]
	inoise, referred := results["INOISE"]
	fmt.Fprintf(w, "\nNoise Analysis Results (%d frequency points):\n", len(freqs))
	if referred {
		fmt.Fprintln(w, "Frequency      Output noise         Gain        Input noise")
	} else {
		fmt.Fprintln(w, "Frequency      Output noise")
	}
	fmt.Fprintln(w, "------------------------------------------------")

	for i, freq := range freqs {
		fmt.Fprintf(w, "%-13s  %-18s", util.FormatFrequency(freq), util.FormatNoiseDensity(onoise[i]))
		if referred {
			fmt.Fprintf(w, "  %s  %s", util.FormatMagnitude(results["GAIN"][i]), util.FormatNoiseDensity(inoise[i]))
		}
		fmt.Fprintln(w)
	}
}

func printDC(w io.Writer, results map[string][]float64) {
	sweep1 := results["SWEEP1"]
	sweep2, hasNested := results["SWEEP2"]
	fmt.Fprintf(w, "\nDC Sweep Analysis Results (%d points):\n", len(sweep1))
	fmt.Fprintln(w, "Sweep Values    Node Voltages        Branch Currents")
	fmt.Fprintln(w, "------------------------------------------------")

	names := keys(results, isSignal)
	for i := range sweep1 {
		if hasNested {
			fmt.Fprintf(w, "S1=%-9g S2=%-9g  ", sweep1[i], sweep2[i])
		} else {
			fmt.Fprintf(w, "S=%-9g  ", sweep1[i])
		}
		for _, name := range names {
			fmt.Fprintf(w, "%s=%s  ", name, util.FormatValueFactor(results[name][i], util.Unit(name)))
		}
		fmt.Fprintln(w)
	}
}

func printLoopGain(w io.Writer, results map[string][]float64) {
	lg := results["LOOPGAIN"][0]
	fmt.Fprintln(w, "\nLoop Gain:")
	fmt.Fprintf(w, "Loop gain         = %.6g (%s)\n", lg, strings.TrimSpace(util.FormatDecibel(math.Abs(lg))))
	if f, ok := results["F"]; ok {
		fmt.Fprintf(w, "Return difference = %.6g\n", f[0])
	}
	if t, ok := results["T"]; ok {
		fmt.Fprintf(w, "Return ratio      = %.6g\n", t[0])
	}
}

func printOP(w io.Writer, results map[string][]float64) {
	fmt.Fprintln(w, "\nNode Voltages:")
	for _, name := range keys(results, func(name string) bool { return strings.HasPrefix(name, "V(") }) {
		fmt.Fprintf(w, "%s = %s\n", name, util.FormatValueFactor(results[name][0], "V"))
	}
	fmt.Fprintln(w, "\nBranch Currents:")
	for _, name := range keys(results, func(name string) bool { return strings.HasPrefix(name, "I(") }) {
		fmt.Fprintf(w, "%s = %s\n", name, util.FormatValueFactor(results[name][0], "A"))
	}
}
