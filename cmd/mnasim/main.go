// Command mnasim runs circuit analyses on SPICE-like netlists.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/edp1096/toy-circuit/pkg/config"
	"github.com/edp1096/toy-circuit/pkg/netlist"
)

// options are the flags shared by every command.
type options struct {
	configPath string
	logLevel   string
	metrics    bool
	params     map[string]string // values for {name} parameters
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "mnasim",
		Short:         "Hierarchical MNA circuit simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.metrics {
				return nil
			}
			return writeMetrics(cmd.OutOrStdout(), prometheus.DefaultGatherer)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML simulation options")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides the config file)")
	flags.BoolVar(&opts.metrics, "metrics", false, "print analysis metrics after the run")
	flags.StringToStringVar(&opts.params, "set", nil, "values for {name} parameters, e.g. --set gm=20m")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newMatricesCmd(opts))
	root.AddCommand(newLoopGainCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// session is what every command starts from: the parsed netlist, the merged
// configuration and a logger.
type session struct {
	opts   *options
	data   *netlist.NetlistData
	cfg    *config.Config
	logger *slog.Logger
}

func (o *options) load(cmd *cobra.Command, path string) (*session, error) {
	cfg := config.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.logLevel != "" {
		cfg.Output.LogLevel = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading netlist file")
	}
	nd, err := netlist.Parse(string(content))
	if err != nil {
		return nil, errors.Wrap(err, "parsing netlist")
	}
	cfg.Merge(nd)

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
	return &session{opts: o, data: nd, cfg: cfg, logger: logger}, nil
}

// resolve looks up a {name} value given with --set.
func (o *options) resolve(name string) (float64, error) {
	raw, ok := o.params[name]
	if !ok {
		return 0, errors.Errorf("no value for {%s}, use --set %s=<value>", name, name)
	}
	return netlist.ParseValue(raw)
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}

	fmt.Fprintln(w, "\nMetrics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(w, "%s%s %s\n", mf.GetName(), labels(m), sample(mf.GetType(), m))
		}
	}
	return nil
}

func labels(m *dto.Metric) string {
	pairs := m.GetLabel()
	if len(pairs) == 0 {
		return ""
	}
	out := make([]string, len(pairs))
	for i, lp := range pairs {
		out[i] = fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
	}
	sort.Strings(out)
	return "{" + strings.Join(out, ",") + "}"
}

func sample(t dto.MetricType, m *dto.Metric) string {
	switch t {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%g", m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprintf("%g", m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%g", h.GetSampleCount(), h.GetSampleSum())
	}
	return "?"
}
