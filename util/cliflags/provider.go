// Package cliflags exposes the flags set on a cli.Context as a
// koanf.Provider, so that flags form the topmost config layer.
package cliflags

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/maps"
	"github.com/urfave/cli/v2"
)

// CLIFlags is a koanf provider over the explicitly set flags of a command
// and the app it belongs to.
type CLIFlags struct {
	mp map[string]any
}

// Provider collects every flag that was set on the command line. key maps
// a flag name to its config key; nil keeps the flag name. A non-empty
// delim unflattens nested keys such as "dispatcher.max_workers".
func Provider(ctx *cli.Context, delim string, key func(string) string) *CLIFlags {
	known := make(map[string]cli.Flag)
	for _, flags := range [][]cli.Flag{ctx.App.VisibleFlags(), ctx.Command.VisibleFlags()} {
		for _, flag := range flags {
			known[flag.Names()[0]] = flag
		}
	}

	mp := make(map[string]any)

	// FlagNames only lists flags that were set, so defaults of the flags
	// never shadow lower config layers
	for _, name := range ctx.FlagNames() {
		flag, ok := known[name]
		if !ok {
			continue
		}

		value, err := flagValue(ctx, name, flag)
		if err != nil {
			continue
		}

		if key != nil {
			name = key(name)
		}

		mp[name] = value
	}

	if delim != "" {
		mp = maps.Unflatten(mp, delim)
	}

	return &CLIFlags{mp: mp}
}

// ReadBytes is not supported, flags have no raw representation.
func (e *CLIFlags) ReadBytes() ([]byte, error) {
	return nil, errors.New("cliflags: provider does not support ReadBytes")
}

// Read returns the collected flag values.
func (e *CLIFlags) Read() (map[string]any, error) {
	return e.mp, nil
}

func flagValue(ctx *cli.Context, name string, flag cli.Flag) (any, error) {
	switch flag.(type) {
	case *cli.StringFlag:
		return ctx.String(name), nil
	case *cli.PathFlag:
		return ctx.Path(name), nil
	case *cli.StringSliceFlag:
		return ctx.StringSlice(name), nil
	case *cli.BoolFlag:
		return ctx.Bool(name), nil
	case *cli.IntFlag:
		return ctx.Int(name), nil
	case *cli.Int64Flag:
		return ctx.Int64(name), nil
	case *cli.UintFlag:
		return ctx.Uint(name), nil
	case *cli.Uint64Flag:
		return ctx.Uint64(name), nil
	case *cli.IntSliceFlag:
		return ctx.IntSlice(name), nil
	case *cli.Int64SliceFlag:
		return ctx.Int64Slice(name), nil
	case *cli.Float64Flag:
		return ctx.Float64(name), nil
	case *cli.Float64SliceFlag:
		return ctx.Float64Slice(name), nil
	case *cli.DurationFlag:
		return ctx.Duration(name), nil
	}

	return nil, fmt.Errorf("cliflags: unsupported flag type %T", flag)
}
