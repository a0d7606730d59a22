package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/lambda-feedback/sysproc/cmd"
	"github.com/lambda-feedback/sysproc/internal/execution/isolate"
	"github.com/lambda-feedback/sysproc/util"
)

var Version string
var Buildtime string
var Commit string

func main() {
	// a re-executed worker runs its work and exits here
	if isolate.Init() {
		return
	}

	err := setupSentry()
	if err != nil {
		log.Fatalf("sentry init failed: %s", err)
	}

	appVersion := "local"
	if Version != "" {
		appVersion = Version
	}

	appBuildtime, _ := time.Parse(time.RFC3339, Buildtime)

	cmd.Execute(cmd.ExecuteParams{
		Version:  appVersion,
		Compiled: appBuildtime,
		// Execute exits the process, events must be sent before
		BeforeExit: flushSentry,
	})
}

func setupSentry() error {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil
	}

	environment := os.Getenv("SENTRY_ENVIRONMENT")
	if environment == "" {
		environment = "local"
	}

	debug := util.Truthy(strings.ToLower(os.Getenv("SENTRY_DEBUG")))

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Debug:            debug,
		TracesSampleRate: 1.0,
		EnableTracing:    true,
		Environment:      environment,
		Release:          Commit,
	})
}

func flushSentry() {
	sentry.Flush(2 * time.Second)
}
