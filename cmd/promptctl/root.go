package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aescanero/dago-node-prompt/internal/registry"
	"github.com/aescanero/dago-node-prompt/pkg/prompt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const appName = "promptctl"

type options struct {
	verbose    bool
	autoescape bool
	sets       []string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           appName,
		Short:         fmt.Sprintf("%s renders, checks and publishes prompt template manifests.", appName),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log compilation and rendering to stderr")
	root.PersistentFlags().BoolVar(&opts.autoescape, "autoescape", false, "HTML-escape substituted values")

	render := &cobra.Command{
		Use:   "render MANIFEST [ARG...]",
		Short: "render a manifest's prompt with positional arguments and --set keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, args[0], args[1:])
		},
	}
	render.Flags().StringArrayVarP(&opts.sets, "set", "s", nil, "keyword argument as key=value, value parsed as YAML")

	check := &cobra.Command{
		Use:   "check MANIFEST...",
		Short: "compile manifests and print their signatures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args)
		},
	}

	clean := &cobra.Command{
		Use:   "clean FILE",
		Short: "print the cleaned template text of FILE ('-' for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, args[0])
		},
	}

	root.AddCommand(render, check, clean)
	root.AddCommand(newStoreCmds(opts)...)
	return root
}

func (o *options) environment() (*prompt.Environment, error) {
	logger := zap.NewNop()
	if o.verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		l, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
	}

	return prompt.NewEnvironment(
		prompt.WithAutoescape(o.autoescape),
		prompt.WithLogger(logger),
	), nil
}

func runRender(cmd *cobra.Command, opts *options, path string, rawArgs []string) error {
	env, err := opts.environment()
	if err != nil {
		return err
	}

	m, err := registry.LoadFile(path)
	if err != nil {
		return err
	}

	reg := registry.New(env, nil, nil)
	tmpl, err := reg.Register(m)
	if err != nil {
		return err
	}

	args := make([]interface{}, 0, len(rawArgs))
	for _, raw := range rawArgs {
		args = append(args, parseValue(raw))
	}

	kwargs := make(map[string]interface{}, len(opts.sets))
	for _, set := range opts.sets {
		key, raw, ok := strings.Cut(set, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --set %q: expected key=value", set)
		}
		kwargs[key] = parseValue(raw)
	}

	out, err := tmpl.Call(args, kwargs)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// parseValue reads a command-line value as YAML so numbers and lists keep
// their type. Text that is not valid YAML is passed through as a string.
func parseValue(raw string) interface{} {
	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	if v == nil && raw != "null" && raw != "~" {
		return raw
	}
	return v
}

func runCheck(cmd *cobra.Command, opts *options, paths []string) error {
	env, err := opts.environment()
	if err != nil {
		return err
	}

	reg := registry.New(env, nil, nil)
	failed := 0
	for _, path := range paths {
		signature, err := checkFile(reg, path)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", signature)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d manifests failed", failed, len(paths))
	}
	return nil
}

func checkFile(reg *registry.Registry, path string) (string, error) {
	m, err := registry.LoadFile(path)
	if err != nil {
		return "", err
	}
	tmpl, err := reg.Register(m)
	if err != nil {
		return "", err
	}
	return m.Name + tmpl.Signature().String(), nil
}

func runClean(cmd *cobra.Command, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	fmt.Fprint(cmd.OutOrStdout(), prompt.Clean(string(data)))
	return nil
}
