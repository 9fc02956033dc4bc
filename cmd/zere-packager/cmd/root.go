package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/zere-installer/internal/config"
	"github.com/oshokin/zere-installer/internal/logger"
	"github.com/oshokin/zere-installer/internal/service/packager"
	"github.com/oshokin/zere-installer/internal/version"
)

var (
	// options collects flag values for the packager.
	//nolint:gochecknoglobals // Bound to cobra flags.
	options packager.Options

	// logLevel is the minimum level of printed logs.
	//nolint:gochecknoglobals // Bound to cobra flags.
	logLevel string

	// rootCmd represents the base command for building the release manifest.
	//nolint:gochecknoglobals // Required by Cobra CLI framework architecture.
	rootCmd = &cobra.Command{
		Use:   "zere-packager [release-directory]",
		Short: "Build the release manifest for zere-installer",
		Long: "Scan a directory for zere-<os>-<arch> release binaries, compute their SHA-256 checksums " +
			"and write them as one version of the manifest consumed by zere-installer.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			if len(args) > 0 {
				options.Directory = args[0]
			}

			return packager.Run(ctx, &options)
		},
	}
)

// Execute runs the zere-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&options.Version, "version", "v", "", "release version of the binaries")
	rootCmd.Flags().StringVarP(&options.BaseURL, "base-url", "u", "", "download URL of the binaries, {version} is expanded")
	rootCmd.Flags().StringVarP(&options.ManifestPath, "manifest", "m", packager.DefaultManifestPath, "manifest to create or update (.yaml, .toml or .json)")
	rootCmd.Flags().StringVarP(&options.Name, "name", "n", config.DefaultExecutableName, "binary name prefix")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", config.DefaultLogLevel, "log level: debug, info, warn, error")

	_ = rootCmd.MarkFlagRequired("version")
	_ = rootCmd.MarkFlagRequired("base-url")
}
