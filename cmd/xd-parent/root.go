package main

import (
	"fmt"

	"github.com/sghaida/xdparent/di"
	"github.com/sghaida/xdparent/env"
	"github.com/sghaida/xdparent/parent"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	config      string
	profiles    []string
	overrides   map[string]string
	environment string

	// environ replaces os.Environ when non-nil.
	environ []string
	// registry replaces di.Process() when non-nil.
	registry di.Registry
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&rootOptions{}) }

func newRootCmdWith(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xd-parent",
		Short: "Compose and host the root context of a platform node",
		Long: `Compose the root context shared by admin and container nodes.

Which beans exist depends on the active profiles ("cloud", "rabbit") and on
the endpoints.health.enabled and XD_JMX_ENABLED properties. Properties are
read from an optional YAML file, then the process environment, then --set.`,
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.config, "config", "", "YAML property file")
	f.StringSliceVar(&opts.profiles, "profile", nil, "profile to activate (repeatable)")
	f.StringToStringVar(&opts.overrides, "set", nil, "property override key=value (repeatable)")
	f.StringVar(&opts.environment, "env", "development", "logging mode: production or development")

	cmd.AddCommand(newDescribeCmd(opts), newServeCmd(opts))
	return cmd
}

func (o *rootOptions) loadEnvironment() (*env.Environment, error) {
	lopts := []env.LoaderOption{
		env.WithProfiles(o.profiles...),
		env.WithOverrides(o.overrides),
	}
	if o.config != "" {
		lopts = append(lopts, env.WithFile(o.config))
	}
	if o.environ != nil {
		lopts = append(lopts, env.WithEnviron(o.environ))
	}
	e, err := env.NewLoader(lopts...).Load()
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	return e, nil
}

func (o *rootOptions) newLogger() (*zap.Logger, error) {
	if o.environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// compose loads the environment and composes the root context.
func (o *rootOptions) compose(log *zap.Logger) (*env.Environment, *di.Context, error) {
	e, err := o.loadEnvironment()
	if err != nil {
		return nil, nil, err
	}
	c, err := parent.Compose(e, parent.Options{Logger: log, Registry: o.registry})
	if err != nil {
		return nil, nil, fmt.Errorf("compose parent context: %w", err)
	}
	return e, c, nil
}
