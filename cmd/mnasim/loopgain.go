package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/edp1096/toy-circuit/pkg/analysis"
	"github.com/edp1096/toy-circuit/pkg/netlist"
	"github.com/edp1096/toy-circuit/pkg/report"
	"github.com/edp1096/toy-circuit/pkg/symbolic"
)

func newLoopGainCmd(opts *options) *cobra.Command {
	var (
		portNames []string
		symbolicG bool
	)
	cmd := &cobra.Command{
		Use:   "loopgain NETLIST TARGET",
		Short: "Compute the loop gain around a controlled source",
		Long: `Break the loop at the controlled source TARGET (a dotted instance path such
as X1.G1) and print the return difference and loop gain.

With --symbolic the circuit is built over symbolic expressions: {name}
values stay symbols unless --set binds them, and the loop gain is printed
as an expression. Symbolic analysis needs a linear circuit.

Examples:
  mnasim loopgain examples/netlists/follower.cir G1 --set gm=20m
  mnasim loopgain examples/netlists/follower.cir G1 --symbolic`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			if len(portNames) != 4 {
				return errors.Errorf("--port needs four terminal names, got %d", len(portNames))
			}
			var port [4]string
			copy(port[:], portNames)

			if symbolicG {
				return s.symbolicLoopGain(cmd.OutOrStdout(), args[1], port)
			}

			top, err := s.build()
			if err != nil {
				return err
			}
			lg := analysis.NewLoopGain(args[1], port, s.cfg.Options(s.logger)...)
			if err := lg.Setup(top); err != nil {
				return err
			}
			if err := lg.Execute(); err != nil {
				return err
			}
			report.Fprint(cmd.OutOrStdout(), lg.GetResults())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&portNames, "port", []string{"inp", "inn", "outp", "outn"}, "control and output terminals of the target")
	cmd.Flags().BoolVar(&symbolicG, "symbolic", false, "compute the loop gain as an expression")
	return cmd
}

func (s *session) symbolicLoopGain(w io.Writer, target string, port [4]string) error {
	b := netlist.NewBuilder[*symbolic.Expr](symbolic.Field{}, func(name string) (*symbolic.Expr, error) {
		if _, ok := s.opts.params[name]; !ok {
			return symbolic.Sym(name), nil
		}
		v, err := s.opts.resolve(name)
		if err != nil {
			return nil, err
		}
		return symbolic.Num(v), nil
	})
	top, err := b.Build(s.data)
	if err != nil {
		return errors.Wrap(err, "building symbolic circuit")
	}

	fb := analysis.NewFeedback[*symbolic.Expr](target)
	fb.Port = port
	fb.RefNode = s.cfg.Analysis.RefNode
	fb.Env = s.cfg.Env()
	fb.Logger = s.logger
	lg, err := fb.Run(top)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "det(G)            = %s\n", lg.DetG)
	fmt.Fprintf(w, "det(G broken)     = %s\n", lg.DetBroken)
	fmt.Fprintf(w, "Return difference = %s\n", lg.F)
	fmt.Fprintf(w, "Loop gain         = %s\n", lg.Gain)
	if syms := lg.Gain.Symbols(); len(syms) > 0 {
		fmt.Fprintf(w, "Free symbols      = %v\n", syms)
	}
	return nil
}
