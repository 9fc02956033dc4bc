package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/zere-installer/internal/config"
	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/logger"
	"github.com/oshokin/zere-installer/internal/platform"
	"github.com/oshokin/zere-installer/internal/repository/manifest"
	"github.com/oshokin/zere-installer/internal/service/common"
	"github.com/oshokin/zere-installer/internal/service/installer"
	"github.com/oshokin/zere-installer/internal/version"
)

const programName = "zere-installer"

// flagValues holds raw command line values; they override the config file
// only when set explicitly.
type flagValues struct {
	configPath     string
	releaseVersion string
	destination    string
	manifestSource string
	manifestFormat string
	signature      string
	publicKey      string
	osOverride     string
	archOverride   string
	logLevel       string
	skipSelfCheck  bool
	progress       bool
}

var (
	//nolint:gochecknoglobals // Bound to cobra flags.
	flags flagValues

	// rootCmd installs the zere binary.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	rootCmd = &cobra.Command{
		Use:   programName,
		Short: "Install the zere CLI binary for this platform",
		Long: "Resolve the zere release for the detected (or given) platform from the manifest, " +
			"download it, verify its SHA-256 checksum, install it atomically and run a smoke test.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options, err := buildOptions(ctx, cmd)
			if err != nil {
				return err
			}

			result, err := installer.Run(ctx, options)
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), result)

			return nil
		},
	}

	// resolveCmd prints the artifact that would be installed.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	resolveCmd = &cobra.Command{
		Use:   "resolve",
		Short: "Print the artifact that would be installed, without downloading it or touching the destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			quietUnlessRequested(cmd)

			options, err := buildOptions(ctx, cmd)
			if err != nil {
				return err
			}

			spec, err := installer.Resolve(ctx, options)
			if err != nil {
				return err
			}

			printSpec(cmd.OutOrStdout(), spec, artifact.Target{
				DestinationPath: options.Destination,
				ExecutableName:  options.ExecutableName,
				Platform:        spec.Platform,
			})

			return nil
		},
	}

	// platformsCmd lists the versions and platforms of the manifest.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	platformsCmd = &cobra.Command{
		Use:   "platforms",
		Short: "List the versions and platforms available in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			quietUnlessRequested(cmd)

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			repo, err := newRepository(settings)
			if err != nil {
				return err
			}

			m, err := repo.Load(ctx)
			if err != nil {
				return err
			}

			printPlatforms(cmd.OutOrStdout(), m)

			return nil
		},
	}
)

// Execute runs the zere-installer CLI and exits with the code of the error kind.
func Execute() {
	if code := execute(); code != artifact.ExitOK {
		os.Exit(code)
	}
}

// execute runs the root command and returns the process exit code.
func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return artifact.ExitOK
	}

	// Stage failures are already logged by the installer.
	var stageErr *artifact.StageError
	if !errors.As(err, &stageErr) {
		logger.ErrorKV(context.Background(), programName+" failed", "error", err)
	}

	return artifact.ExitCode(err)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Shared by the root command and its subcommands.
	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&flags.configPath, "config", "c", "", "path to configuration file (default: search "+config.DefaultConfigFilename+")")
	persistent.StringVarP(&flags.releaseVersion, "version", "v", config.LatestVersion, "release version to install")
	persistent.StringVarP(&flags.destination, "dest", "d", "", "destination directory (default: per-user bin directory)")
	persistent.StringVarP(&flags.manifestSource, "manifest", "m", config.DefaultManifest, "manifest path or URL")
	persistent.StringVar(&flags.manifestFormat, "manifest-format", "", "manifest format: yaml, toml or json (default: detect)")
	persistent.StringVar(&flags.signature, "signature", "", "detached manifest signature path or URL (default: <manifest>.asc)")
	persistent.StringVar(&flags.publicKey, "public-key", "", "OpenPGP public key that must have signed the manifest")
	persistent.StringVar(&flags.osOverride, "os", "", "target operating system instead of the detected one")
	persistent.StringVar(&flags.archOverride, "arch", "", "target architecture instead of the detected one")
	persistent.StringVarP(&flags.logLevel, "log-level", "l", config.DefaultLogLevel, "log level: debug, info, warn, error")

	rootCmd.Flags().BoolVar(&flags.skipSelfCheck, "skip-self-check", false, "do not run the installed binary")
	rootCmd.Flags().BoolVar(&flags.progress, "progress", false, "show a download progress bar")

	rootCmd.AddCommand(resolveCmd, platformsCmd)
	version.AttachCobraVersionCommand(rootCmd)
}

// loadSettings reads the config file and applies explicitly set flags on top.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	settings, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed

	if changed("version") {
		settings.Version = flags.releaseVersion
	}

	if changed("dest") {
		settings.Destination = flags.destination
	}

	if changed("manifest") {
		settings.Manifest = flags.manifestSource
	}

	if changed("signature") {
		settings.Signature = flags.signature
	}

	if changed("public-key") {
		settings.PublicKey = flags.publicKey
	}

	if changed("log-level") {
		settings.LogLevel = flags.logLevel
	}

	if err = config.Validate(settings); err != nil {
		return nil, err
	}

	level, _ := logger.ParseLogLevel(settings.LogLevel)
	logger.SetLevel(level)

	return settings, nil
}

// buildOptions wires the installer collaborators from settings and flags.
func buildOptions(ctx context.Context, cmd *cobra.Command) (*installer.Options, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}

	if (flags.osOverride == "") != (flags.archOverride == "") {
		logger.InfoKV(ctx, "Only one of --os and --arch given, the other is detected")
	}

	skipSelfCheck := flags.skipSelfCheck

	target := platform.NormalizeOS(flags.osOverride)
	if target != "" && target != runtime.GOOS && !skipSelfCheck {
		logger.WarnKV(ctx, "Target OS differs from this host, skipping self-check", "os", target)

		skipSelfCheck = true
	}

	repo, err := newRepository(settings)
	if err != nil {
		return nil, err
	}

	return &installer.Options{
		Manifest:         repo,
		Fetcher:          newClient(settings, flags.progress),
		Detector:         platform.NewDetector(),
		Version:          settings.Version,
		OS:               flags.osOverride,
		Arch:             flags.archOverride,
		Destination:      settings.Destination,
		ExecutableName:   settings.ExecutableName,
		SkipSelfCheck:    skipSelfCheck,
		SelfCheckTimeout: settings.SelfCheckTimeout,
		SelfCheckMarker:  settings.SelfCheckMarker,
		MaxArtifactSize:  settings.MaxArtifactSize,
	}, nil
}

func newClient(settings *config.Config, progress bool) *common.Client {
	options := []common.Option{
		common.WithCallTimeout(settings.Timeout),
		common.WithRetries(settings.Retries),
		common.WithMaxBytes(settings.MaxArtifactSize),
		common.WithUserAgent(version.UserAgent(programName)),
	}

	if progress {
		options = append(options, common.WithProgress(os.Stderr))
	}

	return common.NewClient(options...)
}

// newRepository builds the manifest repository, with signature checking when
// a public key is configured.
//
//nolint:ireturn // Callers only need the Repository behaviour.
func newRepository(settings *config.Config) (manifest.Repository, error) {
	options := []manifest.Option{
		manifest.WithFetcher(newClient(settings, false)),
	}

	if flags.manifestFormat != "" {
		format, err := manifest.ParseFormat(flags.manifestFormat)
		if err != nil {
			return nil, err
		}

		options = append(options, manifest.WithFormat(format))
	}

	if settings.PublicKey != "" {
		verifier, err := manifest.LoadVerifier(settings.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", artifact.ErrInvalidManifest, err)
		}

		options = append(options, manifest.WithSignature(verifier, settings.Signature))
	}

	return manifest.NewRepository(settings.Manifest, options...)
}

// quietUnlessRequested keeps informational logs out of listing commands.
func quietUnlessRequested(cmd *cobra.Command) {
	if cmd.Flags().Changed("log-level") {
		return
	}

	logger.SetLogger(logger.Logger().WithOptions(logger.WithLevel(zapcore.WarnLevel)))
}
