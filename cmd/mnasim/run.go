package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/edp1096/toy-circuit/pkg/analysis"
	"github.com/edp1096/toy-circuit/pkg/circuit"
	"github.com/edp1096/toy-circuit/pkg/netlist"
	"github.com/edp1096/toy-circuit/pkg/report"
	"github.com/edp1096/toy-circuit/pkg/scalar"
)

func newRunCmd(opts *options) *cobra.Command {
	var plotPath string
	cmd := &cobra.Command{
		Use:   "run NETLIST",
		Short: "Run the analysis the netlist asks for",
		Long: `Parse a netlist, build the circuit and run its analysis command
(.op, .dc, .ac, .noise or .loopgain). Without one, an operating point is
computed.

Examples:
  mnasim run examples/netlists/divider.cir
  mnasim run examples/netlists/rc_lowpass.cir --plot bode.png
  mnasim run examples/netlists/follower.cir --set gm=20m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			if plotPath != "" {
				s.cfg.Output.Plot = plotPath
			}
			return s.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&plotPath, "plot", "", "write a Bode plot of a frequency sweep to this PNG file")
	return cmd
}

func (s *session) build() (*circuit.SubCircuit[float64], error) {
	top, err := netlist.NewBuilder[float64](scalar.Real{}, s.opts.resolve).Build(s.data)
	if err != nil {
		return nil, errors.Wrap(err, "building circuit")
	}
	return top, nil
}

func (s *session) analyzer() (analysis.Analysis, error) {
	opts := s.cfg.Options(s.logger)
	nd := s.data

	switch nd.Analysis {
	case netlist.AnalysisOP:
		return analysis.NewOP(opts...), nil

	case netlist.AnalysisDC:
		p := nd.DCParam
		if p.Source2 != "" {
			// nested sweep
			return analysis.NewDCSweep(
				[]string{p.Source1, p.Source2},
				[]float64{p.Start1, p.Start2},
				[]float64{p.Stop1, p.Stop2},
				[]float64{p.Increment1, p.Increment2},
				opts...,
			)
		}
		return analysis.NewDCSweep(
			[]string{p.Source1},
			[]float64{p.Start1},
			[]float64{p.Stop1},
			[]float64{p.Increment1},
			opts...,
		)

	case netlist.AnalysisAC:
		return analysis.NewAC(s.cfg.Sweep(), opts...)

	case netlist.AnalysisNoise:
		n := s.cfg.Analysis.Noise
		return analysis.NewNoise(n.Output, n.Source, s.cfg.Sweep(), opts...)

	case netlist.AnalysisLoopGain:
		lg := s.cfg.Analysis.LoopGain
		if nd.LoopGainParam.Swept {
			return analysis.NewLoopGainAC(lg.Target, s.cfg.Port(), s.cfg.Sweep(), opts...)
		}
		return analysis.NewLoopGain(lg.Target, s.cfg.Port(), opts...), nil
	}
	return nil, errors.Errorf("unsupported analysis type %v", nd.Analysis)
}

func (s *session) run(w io.Writer) error {
	top, err := s.build()
	if err != nil {
		return err
	}
	a, err := s.analyzer()
	if err != nil {
		return err
	}

	s.logger.Info("running analysis", "title", s.data.Title, "analysis", s.data.Analysis, "unknowns", top.N())
	if err := a.Setup(top); err != nil {
		return errors.Wrap(err, "analysis setup failed")
	}
	if err := a.Execute(); err != nil {
		return errors.Wrap(err, "analysis execution failed")
	}

	results := a.GetResults()
	fmt.Fprintf(w, "%s (%s)\n", s.data.Title, s.data.Analysis)
	report.Fprint(w, results)

	if path := s.cfg.Output.Plot; path != "" {
		if _, swept := results["FREQ"]; !swept {
			s.logger.Warn("no frequency sweep to plot", "analysis", s.data.Analysis)
			return nil
		}
		if err := report.NewBode(s.data.Title).Save(path, results); err != nil {
			return err
		}
		s.logger.Info("plot written", "path", path)
	}
	return nil
}
