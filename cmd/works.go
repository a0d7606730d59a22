package cmd

import (
	"fmt"

	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
	"github.com/urfave/cli/v2"

	// register the builtin work
	_ "github.com/lambda-feedback/sysproc/internal/works"
)

var worksCmd = &cli.Command{
	Name:  "works",
	Usage: "List the work that can be run with the call command.",
	Action: func(ctx *cli.Context) error {
		for _, name := range isolate.Registered() {
			fmt.Fprintln(ctx.App.Writer, name)
		}
		return nil
	},
}

func init() {
	rootApp.Commands = append(rootApp.Commands, worksCmd)
}
