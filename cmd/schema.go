package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dkletran/cloudsearch-admin/pkg/gcp"
)

func newSchemaCmd(logger logrus.FieldLogger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the schema of a Cloud Search data source",
	}
	cmd.AddCommand(newSchemaUpdateCmd(logger), newSchemaGetCmd(logger))
	return cmd
}

func newSchemaUpdateCmd(logger logrus.FieldLogger) *cobra.Command {
	var serviceAccountFile, datasources, schemaJSON string
	var validateOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Create or update a data source schema from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := newSearchAPI(ctx, serviceAccountFile)
			if err != nil {
				return err
			}
			updater := gcp.NewSchemaUpdater(api, logger)
			updater.ValidateOnly = validateOnly
			_, err = updater.Update(ctx, datasources, schemaJSON)
			return err
		},
	}
	cmd.Flags().StringVar(&serviceAccountFile, "service_account_file", "", "File name for the service account (mandatory)")
	cmd.Flags().StringVar(&datasources, "datasources", "", "DataSource to update (mandatory)")
	cmd.Flags().StringVar(&schemaJSON, "schema_json", "", "Schema JSON structure (mandatory)")
	cmd.Flags().BoolVar(&validateOnly, "validate_only", false, "Only validate the schema, do not apply it")
	_ = cmd.MarkFlagRequired("service_account_file")
	_ = cmd.MarkFlagRequired("datasources")
	_ = cmd.MarkFlagRequired("schema_json")
	return cmd
}

func newSchemaGetCmd(logger logrus.FieldLogger) *cobra.Command {
	var serviceAccountFile, datasources string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show the schema of a data source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := newSearchAPI(ctx, serviceAccountFile)
			if err != nil {
				return err
			}
			_, err = gcp.NewSchemaUpdater(api, logger).Get(ctx, datasources)
			return err
		},
	}
	cmd.Flags().StringVar(&serviceAccountFile, "service_account_file", "", "File name for the service account (mandatory)")
	cmd.Flags().StringVar(&datasources, "datasources", "", "DataSource to read (mandatory)")
	_ = cmd.MarkFlagRequired("service_account_file")
	_ = cmd.MarkFlagRequired("datasources")
	return cmd
}
