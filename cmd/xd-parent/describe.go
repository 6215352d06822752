package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sghaida/xdparent/di"
	"github.com/sghaida/xdparent/env"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the beans the root context publishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, c, err := opts.compose(zap.NewNop())
			if err != nil {
				return err
			}
			defer c.Close()
			return describe(cmd.OutOrStdout(), e, c)
		},
	}
}

func describe(w io.Writer, e *env.Environment, c *di.Context) error {
	profiles := strings.Join(e.Profiles(), ",")
	if profiles == "" {
		profiles = "-"
	}
	if _, err := fmt.Fprintf(w, "context %s (profiles: %s)\n\n", c.ID(), profiles); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BEAN\tTYPE\tDEPENDS ON")
	for _, name := range c.Names() {
		typ, _ := c.TypeOf(name)
		deps := c.DependenciesOf(name)
		ds := "-"
		if len(deps) > 0 {
			parts := make([]string, len(deps))
			for i, d := range deps {
				parts[i] = string(d)
			}
			ds = strings.Join(parts, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, typ, ds)
	}
	return tw.Flush()
}
