package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/songcraft"
	"github.com/igolaizola/songcraft/pkg/cmd/analyze"
	"github.com/igolaizola/songcraft/pkg/cmd/web"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("songcraft", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "songcraft [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newServeCommand(),
			newComposeCommand(),
			newAnalyzeCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "songcraft version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			fmt.Println(versionString(version, commit, date))
			return nil
		},
	}
}

func versionString(version, commit, date string) string {
	v := version
	if v == "" {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			v = buildInfo.Main.Version
		}
	}
	if v == "" || v == "(devel)" {
		v = "dev"
	}
	versionFields := []string{v}
	if commit != "" {
		versionFields = append(versionFields, commit)
	}
	if date != "" {
		versionFields = append(versionFields, date)
	}
	return strings.Join(versionFields, " ")
}

type modelFlags struct {
	llmKey       *string
	llmURL       *string
	llmModel     *string
	modelURL     *string
	modelToken   *string
	modelName    *string
	modelOptions map[string]string
}

// addModelFlags registers the flags shared by the commands that talk to the
// language model and the music model.
func addModelFlags(fs *flag.FlagSet) *modelFlags {
	m := &modelFlags{
		llmKey:     fs.String("llm-key", "", "language model api key, mock mode if empty"),
		llmURL:     fs.String("llm-url", "", "language model base url (openai compatible)"),
		llmModel:   fs.String("llm-model", "", "language model name"),
		modelURL:   fs.String("model-url", "", "music model inference server url"),
		modelToken: fs.String("model-token", "", "music model inference server token"),
		modelName:  fs.String("model-name", "", "music model name"),
	}
	fsMapVar(fs, &m.modelOptions, "model-options", nil, "music model load options (semicolon separated) Example: device:cuda;torch_dtype:float32")
	return m
}

func newServeCommand() *ffcli.Command {
	cmd := "serve"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &web.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Addr, "addr", ":8501", "address to listen on")
	fs.BoolVar(&cfg.Open, "open", false, "open the browser")
	fs.BoolVar(&cfg.Ngrok, "ngrok", false, "expose the web app with an ngrok tunnel")
	fs.DurationVar(&cfg.Timeout, "timeout", 5*time.Minute, "request timeout")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", 24*time.Hour, "time to keep idle sessions")
	fs.StringVar(&cfg.Examples, "examples", "", "examples file (json, yaml or csv)")
	m := addModelFlags(fs)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("songcraft %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SONGCRAFT"),
		},
		ShortHelp: fmt.Sprintf("songcraft %s web app", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			cfg.LLMKey = *m.llmKey
			cfg.LLMURL = *m.llmURL
			cfg.LLMModel = *m.llmModel
			cfg.ModelURL = *m.modelURL
			cfg.ModelToken = *m.modelToken
			cfg.ModelName = *m.modelName
			cfg.ModelOptions = m.modelOptions
			return web.Serve(ctx, cfg)
		},
	}
}

func newComposeCommand() *ffcli.Command {
	cmd := "compose"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &songcraft.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Proxy, "proxy", "", "proxy")
	fs.DurationVar(&cfg.ModelTimeout, "model-timeout", 5*time.Minute, "music model request timeout")
	m := addModelFlags(fs)

	var description, feedback, output string
	var duration int
	fs.StringVar(&description, "description", "", "description of the music")
	fs.IntVar(&duration, "duration", 20, "duration in seconds (15-30)")
	fs.StringVar(&feedback, "feedback", "", "feedback to refine the music (semicolon separated)")
	fs.StringVar(&output, "output", "", "output file or folder")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("songcraft %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SONGCRAFT"),
		},
		ShortHelp: fmt.Sprintf("songcraft %s music from a description", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			if description == "" {
				return errors.New("description is required")
			}
			cfg.LLMKey = *m.llmKey
			cfg.LLMURL = *m.llmURL
			cfg.LLMModel = *m.llmModel
			cfg.ModelURL = *m.modelURL
			cfg.ModelToken = *m.modelToken
			cfg.ModelName = *m.modelName
			cfg.ModelOptions = m.modelOptions
			return songcraft.Compose(ctx, cfg, description, splitList(feedback), duration, output)
		},
	}
}

func newAnalyzeCommand() *ffcli.Command {
	cmd := "analyze"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &analyze.Config{}
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Input, "input", "", "input file (wav or mp3)")
	fs.StringVar(&cfg.Output, "output", "", "output folder for the plots")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("songcraft %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SONGCRAFT"),
		},
		ShortHelp: fmt.Sprintf("songcraft %s audio file", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return analyze.Run(ctx, cfg)
		},
	}
}

func splitList(value string) []string {
	var items []string
	for _, v := range strings.Split(value, ";") {
		v = strings.TrimSpace(v)
		if v != "" {
			items = append(items, v)
		}
	}
	return items
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
