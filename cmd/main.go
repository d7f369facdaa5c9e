package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/dkletran/cloudsearch-admin/pkg/db"
	"github.com/dkletran/cloudsearch-admin/pkg/gcp"
)

var (
	newIdentityAPI = func(ctx context.Context, serviceAccountFile string) (gcp.IdentityAPI, error) {
		auth, err := gcp.ServiceAccountOption(ctx, serviceAccountFile, gcp.IdentityScope)
		if err != nil {
			return nil, err
		}
		return gcp.NewIdentityAPI(ctx, auth)
	}
	newSearchAPI = func(ctx context.Context, serviceAccountFile string) (gcp.SearchAPI, error) {
		auth, err := gcp.ServiceAccountOption(ctx, serviceAccountFile, gcp.SearchScope)
		if err != nil {
			return nil, err
		}
		return gcp.NewSearchAPI(ctx, auth)
	}
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stderr))
}

func execute(ctx context.Context, args []string, stderr io.Writer) int {
	logger := logrus.New()
	logger.SetOutput(stderr)

	rootCmd := newRootCmd(logger)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stderr)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.WithError(err).WithField("kind", gcp.KindOf(err).String()).Error("Command failed")
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	switch gcp.KindOf(err) {
	case gcp.KindAuth:
		return 3
	case gcp.KindIO:
		return 4
	case gcp.KindParse:
		return 5
	case gcp.KindAPI:
		return 6
	default:
		return 1
	}
}

func newRootCmd(logger *logrus.Logger) *cobra.Command {
	var logLevel, logFormat string

	rootCmd := &cobra.Command{
		Use:           filepath.Base(os.Args[0]),
		Short:         "Cloud Identity groups and Cloud Search schema tooling",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(logger, logLevel, logFormat)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log_format", "text", "Log format (text or json)")

	rootCmd.AddCommand(newGroupsCmd(logger), newSchemaCmd(logger), newExportCmd(logger), newUploadCmd(logger))
	return rootCmd
}

func configureLogger(logger *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)

	switch format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

func newExportCmd(logger logrus.FieldLogger) *cobra.Command {
	var sqliteFile, exportDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a groups snapshot database to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("Export snapshot - START")
			if err := db.ListTablesAndDump(logger, sqliteFile, exportDir); err != nil {
				return fmt.Errorf("failed to export tables to csv files: %w", err)
			}
			logger.Info("Export snapshot - END")
			return nil
		},
	}
	cmd.Flags().StringVar(&sqliteFile, "sqlite_file", "./snapshot.db", "Path to the SQLite snapshot to export")
	cmd.Flags().StringVar(&exportDir, "export_dir", "./export", "Directory used to dump CSV exports")
	return cmd
}

func newUploadCmd(logger logrus.FieldLogger) *cobra.Command {
	var bucketName, srcPath, serviceAccountFile string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload CSV exports to GCS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var opts []option.ClientOption
			if serviceAccountFile != "" {
				auth, err := gcp.ServiceAccountOption(ctx, serviceAccountFile, storage.ScopeReadWrite)
				if err != nil {
					return err
				}
				opts = append(opts, auth)
			}
			return gcp.UploadFilesToGCS(ctx, logger, bucketName, srcPath, opts...)
		},
	}
	cmd.Flags().StringVar(&bucketName, "bucket_name", "", "GCS bucket name where files are uploaded (mandatory)")
	cmd.Flags().StringVar(&srcPath, "src_path", "./export", "Path to upload, can be a file or a directory (non-recursive)")
	cmd.Flags().StringVar(&serviceAccountFile, "service_account_file", "", "Service account key file; application default credentials when empty")
	_ = cmd.MarkFlagRequired("bucket_name")
	return cmd
}
