package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/service/ecr"
	awsecs "github.com/aws/aws-sdk-go/service/ecs"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fluxcd/deploy2ecs/pkg/build"
	"github.com/fluxcd/deploy2ecs/pkg/cluster"
	"github.com/fluxcd/deploy2ecs/pkg/cluster/dryrun"
	"github.com/fluxcd/deploy2ecs/pkg/cluster/ecs"
	"github.com/fluxcd/deploy2ecs/pkg/config"
	"github.com/fluxcd/deploy2ecs/pkg/git"
	"github.com/fluxcd/deploy2ecs/pkg/middleware"
	"github.com/fluxcd/deploy2ecs/pkg/registry"
	"github.com/fluxcd/deploy2ecs/pkg/release"
)

type rootOpts struct {
	configFile  string
	force       bool
	dryRun      bool
	quiet       bool
	verbose     bool
	tags        []string
	branch      string
	params      map[string]string
	logFormat   string
	awsRegion   string
	awsRPS      float64
	awsBurst    int
	taskTimeout time.Duration
	gitTimeout  time.Duration
	pushGateway string

	logOut io.Writer
}

func newRoot(logOut io.Writer) *rootOpts {
	return &rootOpts{logOut: logOut}
}

var rootLongHelp = strings.TrimSpace(`
deploy2ecs builds container images, registers ECS task definitions and
deploys ECS services, doing only what the git history says has changed.

Without a subcommand, every phase is run in order.

Workflow:
  deploy2ecs -c deploy2ecs.yaml                           # Build, register and deploy as needed.
  deploy2ecs build-image -c deploy2ecs.yaml -t v1.2.0     # Build and push images, adding a tag.
  deploy2ecs register-service -c deploy2ecs.yaml --dry-run # Show what would be deployed.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "deploy2ecs",
		Long:          rootLongHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return errorWantedNoArgs
			}
			return opts.run(release.AllPhases)
		},
	}
	opts.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newPhaseCommand(opts, release.BuildImages, "Build and push the images that have changed"),
		newPhaseCommand(opts, release.RegisterTaskDefinitions, "Register the task definitions that have changed"),
		newPhaseCommand(opts, release.RegisterServices, "Create or update the services that have changed"),
		newVersionCommand(),
	)
	return cmd
}

func (opts *rootOpts) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&opts.configFile, "config", "c", "", "path to the configuration file")
	flags.BoolVarP(&opts.force, "force-update", "f", false, "rebuild, register and deploy everything regardless of changes")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "decide what to do, but do not build, push or change anything in the cluster")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "log nothing")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output, including build output")
	flags.StringSliceVarP(&opts.tags, "tag", "t", nil, "extra tag to give every image; may be repeated")
	flags.StringVar(&opts.branch, "branch", "", "branch to select configuration for, instead of the current branch")
	flags.StringToStringVar(&opts.params, "param", nil, "value for !Ref NAME in the configuration, as NAME=VALUE; may be repeated")
	flags.StringVar(&opts.logFormat, "log-format", "fmt", "log format, fmt or json")
	flags.StringVar(&opts.awsRegion, "aws-region", "", "AWS region; defaults to that of the first ECR repository configured")
	flags.Float64Var(&opts.awsRPS, "aws-rps", 20, "maximum AWS API requests per second, per endpoint")
	flags.IntVar(&opts.awsBurst, "aws-burst", 10, "maximum burst of AWS API requests, per endpoint")
	flags.DurationVar(&opts.taskTimeout, "task-timeout", 30*time.Minute, "how long to wait for each task run before a deployment; zero means no limit")
	flags.DurationVar(&opts.gitTimeout, "git-timeout", 20*time.Second, "duration after which git operations time out")
	flags.StringVar(&opts.pushGateway, "metrics-push-gateway", "", "Prometheus push gateway URL to send metrics to at exit")
}

func newPhaseCommand(opts *rootOpts, phase release.Phase, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(phase),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return errorWantedNoArgs
			}
			return opts.run([]release.Phase{phase})
		},
	}
}

func (opts *rootOpts) run(phases []release.Phase) error {
	if opts.configFile == "" {
		return errorNoConfig
	}
	logger, err := newLogger(opts.logOut, opts.logFormat, opts.verbose, opts.quiet)
	if err != nil {
		return newUsageError(err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-c:
			level.Warn(logger).Log("info", "cancelling", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()

	runID := uuid.New().String()
	if opts.pushGateway != "" {
		defer func() {
			pushErr := push.New(opts.pushGateway, "deploy2ecs").
				Gatherer(prometheus.DefaultGatherer).
				Grouping("run", runID).
				Push()
			if pushErr != nil {
				level.Warn(logger).Log("info", "could not push metrics", "err", pushErr)
			}
		}()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "getting working directory")
	}
	repo, err := git.Open(ctx, cwd, git.Timeout(opts.gitTimeout))
	if err != nil {
		return err
	}
	branch := opts.branch
	if branch == "" {
		if branch, err = repo.CurrentBranch(ctx); err != nil {
			return errors.Wrap(err, "finding current branch")
		}
	}

	app, ok, err := config.Load(opts.configFile, branch, config.Options{Params: opts.params})
	if err != nil {
		return err
	}
	if !ok {
		level.Warn(logger).Log("info", fmt.Sprintf("skipping deployment, because there is no configuration for the branch %q", branch))
		return nil
	}

	limiters := &middleware.RateLimiters{RPS: opts.awsRPS, Burst: opts.awsBurst, Logger: log.With(logger, "component", "ratelimiter")}
	sess, err := newAWSSession(awsRegion(opts.awsRegion, app.Images), limiters, logger)
	if err != nil {
		return err
	}

	reg := registry.NewInstrumentedRegistry(
		registry.NewECR(ecr.New(sess), log.With(logger, "component", "registry")))

	ecsCluster := ecs.NewCluster(awsecs.New(sess), log.With(logger, "component", "cluster"))
	ecsCluster.StartedBy = runID
	var c cluster.Cluster = cluster.NewInstrumented(ecsCluster)

	var builder build.Executor
	if opts.dryRun {
		c = dryrun.New(c, log.With(logger, "component", "dry-run"))
		builder = build.NewDryRun(log.With(logger, "component", "dry-run"))
	} else {
		builder = build.NewDocker(repo.Dir(), log.With(logger, "component", "docker"))
	}

	rc := release.NewReleaseContext(repo, reg, c, builder, config.Renderer{Dir: repo.Dir()}, logger)
	result, err := release.Release(ctx, rc, app, release.Options{
		Force:       opts.force,
		ExtraTags:   opts.tags,
		Phases:      phases,
		RunID:       runID,
		TaskTimeout: opts.taskTimeout,
	}, logger)
	if err != nil {
		return err
	}
	level.Info(logger).Log("info", "release finished", "run", result.RunID,
		"images", len(result.Images), "task-definitions", len(result.TaskDefinitions), "services", len(result.Services))
	return nil
}
