package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-feature/go-sdk/openfeature"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	vwo "github.com/matt-riley/vwo-openfeature-provider"
	"github.com/matt-riley/vwo-openfeature-provider/instrument"
	"github.com/matt-riley/vwo-openfeature-provider/internal/evaluation"
	"github.com/matt-riley/vwo-openfeature-provider/local"
	"github.com/matt-riley/vwo-openfeature-provider/provider"
)

const clientDomain = "vwo-eval"

type resolveOptions struct {
	valueType    string
	defaultValue string
	targetingKey string
	variable     string
	attrs        []string
	custom       []string
	variation    []string
	metricsFile  string
}

func resolutionTable(r evaluation.Resolution) ([]string, [][]string) {
	header := []string{"Flag", "Type", "Value", "Variant", "Reason", "Error"}
	return header, [][]string{{r.Flag, r.Type, fmt.Sprint(r.Value), r.Variant, r.Reason, r.Error}}
}

func newResolveCmd(a *app) *cobra.Command {
	var opts resolveOptions

	cmd := &cobra.Command{
		Use:   "resolve <flag>",
		Short: "Resolve a flag through the OpenFeature client",
		Long: `Resolve a flag through an OpenFeature client backed by the VWO provider.

Failures never abort the command: the default value is printed together with
the resolution error.

Examples:
  vwo-eval resolve checkout-redesign --targeting-key user-1
  vwo-eval resolve checkout-redesign --type int --variable max-items --default 5
  vwo-eval resolve checkout-redesign --type object --default '{"theme": "light"}'
  vwo-eval resolve banner --targeting-key user-1 --custom plan=gold --attr userAgent=curl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.resolve(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			header, rows := resolutionTable(res)
			return writeOutput(a.stdout, a.cfg.OutputFormat, res, header, rows)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.valueType, "type", "t", evaluation.TypeBool, "Flag value type: bool, string, int, float, object")
	f.StringVarP(&opts.defaultValue, "default", "d", "", "Default value, parsed according to --type")
	f.StringVarP(&opts.targetingKey, "targeting-key", "k", "", "User ID sent to VWO")
	f.StringVar(&opts.variable, "variable", "", "Variable to read from the flag")
	f.StringArrayVar(&opts.attrs, "attr", nil, "Evaluation context attribute as key=value (repeatable)")
	f.StringArrayVar(&opts.custom, "custom", nil, "Custom variable as key=value (repeatable)")
	f.StringArrayVar(&opts.variation, "variation", nil, "Variation targeting variable as key=value (repeatable)")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write client metrics in Prometheus text format to this file")

	return cmd
}

func (a *app) resolve(ctx context.Context, flag string, opts resolveOptions) (evaluation.Resolution, error) {
	req, err := opts.request(flag)
	if err != nil {
		return evaluation.Resolution{}, err
	}

	flags, err := local.LoadFile(a.cfg.FlagsFile)
	if err != nil {
		return evaluation.Resolution{}, fmt.Errorf("load flags: %w", err)
	}

	metrics := instrument.NewMetrics()
	client, err := a.registerProvider(local.New(flags, local.WithLogger(a.log)), metrics)
	if err != nil {
		return evaluation.Resolution{}, err
	}

	res, err := evaluation.Evaluate(ctx, client, req)
	if err != nil {
		return evaluation.Resolution{}, err
	}
	a.log.Debug("flag resolved", "flag", flag, "type", res.Type, "reason", res.Reason)

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, metrics.Registry); err != nil {
			return evaluation.Resolution{}, fmt.Errorf("write metrics: %w", err)
		}
	}
	return res, nil
}

// registerProvider installs the VWO provider over flags for the vwo-eval
// domain and returns a client bound to it.
func (a *app) registerProvider(flags vwo.Client, metrics *instrument.Metrics) (*openfeature.Client, error) {
	client := instrument.Wrap(flags, instrument.WithMetrics(metrics), instrument.WithLogger(a.log))
	if err := openfeature.SetNamedProviderAndWait(clientDomain, provider.New(client, provider.WithLogger(a.log))); err != nil {
		return nil, fmt.Errorf("register provider: %w", err)
	}
	return openfeature.NewClient(clientDomain), nil
}

// request builds the evaluation request. Defaults other than strings are
// parsed as YAML, so JSON objects are accepted too.
func (o resolveOptions) request(flag string) (evaluation.Request, error) {
	evalCtx, err := o.evaluationContext()
	if err != nil {
		return evaluation.Request{}, err
	}

	var def any
	if strings.EqualFold(o.valueType, evaluation.TypeString) {
		def = o.defaultValue
	} else if raw := strings.TrimSpace(o.defaultValue); raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &def); err != nil {
			return evaluation.Request{}, fmt.Errorf("parse --default %q: %w", raw, err)
		}
	}

	return evaluation.Request{
		Flag:         flag,
		Type:         o.valueType,
		Default:      def,
		TargetingKey: evalCtx.TargetingKey(),
		Attributes:   evalCtx.Attributes(),
	}, nil
}

func (o resolveOptions) evaluationContext() (openfeature.EvaluationContext, error) {
	attrs := make(map[string]any)
	for _, kv := range o.attrs {
		key, value, err := splitPair("--attr", kv)
		if err != nil {
			return openfeature.EvaluationContext{}, err
		}
		attrs[key] = value
	}
	if o.variable != "" {
		attrs[provider.AttrKey] = o.variable
	}

	for _, group := range []struct {
		attr  string
		flag  string
		pairs []string
	}{
		{attr: provider.AttrCustomVariables, flag: "--custom", pairs: o.custom},
		{attr: provider.AttrVariationTargetingVariables, flag: "--variation", pairs: o.variation},
	} {
		if len(group.pairs) == 0 {
			continue
		}
		vars := make(map[string]any, len(group.pairs))
		for _, kv := range group.pairs {
			key, value, err := splitPair(group.flag, kv)
			if err != nil {
				return openfeature.EvaluationContext{}, err
			}
			vars[key] = scalarValue(value)
		}
		attrs[group.attr] = vars
	}

	return openfeature.NewEvaluationContext(o.targetingKey, attrs), nil
}

func splitPair(flag, kv string) (string, string, error) {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%s %q: want key=value", flag, kv)
	}
	return key, value, nil
}

// scalarValue types a command-line value as YAML would, keeping anything
// that is not a scalar as the raw string.
func scalarValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case bool, int, float64, string:
		return v
	default:
		return raw
	}
}
