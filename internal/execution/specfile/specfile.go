// Package specfile loads command descriptions from YAML or JSON files.
//
//	program: python3
//	args: ["-u", "job.py"]
//	env: {MODE: batch}
//	stdout: capture
//	stderr: job.log
//	timeout: 30s
//
// Streams are one of "inherit", "discard", "capture" or a file path.
// Relative paths are resolved against the directory of the file, which is
// also the working directory of the command unless dir is set.
package specfile

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lambda-feedback/sysproc/internal/execution/launcher"
	"github.com/lambda-feedback/sysproc/internal/execution/stdio"
	"github.com/lambda-feedback/sysproc/internal/execution/supervisor"
	"github.com/lambda-feedback/sysproc/util"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const (
	StreamInherit = "inherit"
	StreamDiscard = "discard"
	StreamCapture = "capture"
)

var ErrNoSink = errors.New("stream captured but no sink given")

//go:embed command.schema.json
var commandSchemaJson []byte

var commandSchema = util.Must(gojsonschema.NewSchema(gojsonschema.NewBytesLoader(commandSchemaJson)))

// File is the document as written by the user.
type File struct {
	Program    string            `yaml:"program"`
	Args       []string          `yaml:"args"`
	Env        map[string]string `yaml:"env"`
	InheritEnv *bool             `yaml:"inherit_env"`
	Dir        string            `yaml:"dir"`
	Stdin      string            `yaml:"stdin"`
	Stdout     string            `yaml:"stdout"`
	Stderr     string            `yaml:"stderr"`
	Timeout    string            `yaml:"timeout"`
}

// Command is a loaded file, ready to be handed to a supervisor.
type Command struct {
	Spec    launcher.Spec
	Timeout time.Duration
}

// Sinks receive the streams a file marks as "capture".
type Sinks struct {
	Stdout io.Writer
	Stderr io.Writer
}

// ValidationError lists everything the schema rejected.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid command file: " + strings.Join(e.Problems, "; ")
}

// Load reads, validates and converts the file at path.
func Load(path string, sinks Sinks) (*Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading command file: %w", err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	cmd, err := Parse(data, base, sinks)
	if err != nil {
		return nil, err
	}

	// the command runs next to its file unless dir says otherwise
	if cmd.Spec.Dir == "" {
		cmd.Spec.Dir = base
	}

	return cmd, nil
}

// Parse validates and converts a document. Relative paths are resolved
// against base.
func Parse(data []byte, base string, sinks Sinks) (*Command, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error decoding command file: %w", err)
	}

	if err := validate(doc); err != nil {
		return nil, err
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error decoding command file: %w", err)
	}

	return file.Command(base, sinks)
}

func validate(doc any) error {
	res, err := commandSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("error validating command file: %w", err)
	}

	if res.Valid() {
		return nil
	}

	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}

	return &ValidationError{Problems: problems}
}

// Command converts the file. It does not validate against the schema.
func (f *File) Command(base string, sinks Sinks) (*Command, error) {
	var timeout time.Duration
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		timeout = d

		// a written zero means no limit, not the configured default
		if timeout <= 0 {
			timeout = supervisor.NoTimeout
		}
	}

	stdin, err := directive(f.Stdin, base, nil)
	if err != nil {
		return nil, fmt.Errorf("stdin: %w", err)
	}

	stdout, err := directive(f.Stdout, base, sinks.Stdout)
	if err != nil {
		return nil, fmt.Errorf("stdout: %w", err)
	}

	stderr, err := directive(f.Stderr, base, sinks.Stderr)
	if err != nil {
		return nil, fmt.Errorf("stderr: %w", err)
	}

	dir := f.Dir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}

	return &Command{
		Spec: launcher.Spec{
			Path: f.Program,
			Args: append([]string{f.Program}, f.Args...),
			Env:  f.environ(),
			Dir:  dir,
			Stdio: stdio.Plan{
				Stdin:  stdin,
				Stdout: stdout,
				Stderr: stderr,
			},
		},
		Timeout: timeout,
	}, nil
}

// environ returns nil if the parent environment is used unchanged.
func (f *File) environ() []string {
	inherit := f.InheritEnv == nil || *f.InheritEnv

	if inherit && len(f.Env) == 0 {
		return nil
	}

	vars := map[string]string{}
	if inherit {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok {
				vars[k] = v
			}
		}
	}
	for k, v := range f.Env {
		vars[k] = v
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	return env
}

// directive maps a stream value to a stdio directive. Unset streams are
// inherited.
func directive(value, base string, sink io.Writer) (stdio.Directive, error) {
	switch value {
	case "", StreamInherit:
		return stdio.Inherit(), nil
	case StreamDiscard:
		return stdio.Discard(), nil
	case StreamCapture:
		if sink == nil {
			return stdio.Directive{}, ErrNoSink
		}
		return stdio.Pipe(sink), nil
	}

	if !filepath.IsAbs(value) {
		value = filepath.Join(base, value)
	}

	return stdio.File(value), nil
}
