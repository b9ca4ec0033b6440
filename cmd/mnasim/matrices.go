package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/edp1096/toy-circuit/pkg/analysis"
)

func newMatricesCmd(opts *options) *cobra.Command {
	var freq float64
	cmd := &cobra.Command{
		Use:   "matrices NETLIST",
		Short: "Print the reduced MNA system of a netlist",
		Long: `Print the equations the solver sees. Nonlinear circuits are first solved
for their operating point and the system is printed there.

Examples:
  mnasim matrices examples/netlists/divider.cir
  mnasim matrices examples/netlists/rc_lowpass.cir --freq 1k`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.load(cmd, args[0])
			if err != nil {
				return err
			}
			top, err := s.build()
			if err != nil {
				return err
			}

			op := analysis.NewOP(s.cfg.Options(s.logger)...)
			if err := op.Setup(top); err != nil {
				return err
			}
			var x []float64
			if top.IsNonlinear() {
				if err := op.Execute(); err != nil {
					return errors.Wrap(err, "operating point")
				}
				x = op.Solution()
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %d unknowns, reference %s\n", s.data.Title, top.N(), s.cfg.Analysis.RefNode)
			return op.PrintSystem(w, x, freq)
		},
	}

	cmd.Flags().Float64Var(&freq, "freq", 0, "print the AC system at this frequency instead of the DC one")
	return cmd
}
