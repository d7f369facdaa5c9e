package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/api/cloudidentity/v1"

	"github.com/dkletran/cloudsearch-admin/pkg/db"
	"github.com/dkletran/cloudsearch-admin/pkg/gcp"
	"github.com/dkletran/cloudsearch-admin/pkg/model"
)

func newGroupsCmd(logger logrus.FieldLogger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Read groups of a Cloud Identity identity source",
	}
	cmd.AddCommand(newGroupsListCmd(logger), newGroupsGetCmd(logger), newGroupsMembershipsCmd(logger))
	return cmd
}

func newGroupsListCmd(logger logrus.FieldLogger) *cobra.Command {
	var serviceAccountFile, identitySources, sqliteFile string
	var withMemberships bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every group of an identity source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger.Info("List groups - START")

			api, err := newIdentityAPI(ctx, serviceAccountFile)
			if err != nil {
				return err
			}
			groupService := gcp.NewGroupService(api, identitySources, logger)

			groups, err := groupService.List(ctx)
			if err != nil {
				return err
			}
			for _, group := range groups {
				logger.WithField("group", group.Name).Infof("Group: %s DisplayName: %s", group.Name, group.DisplayName)
			}

			var database *sql.DB
			if sqliteFile != "" {
				database, err = db.InitDB(sqliteFile)
				if err != nil {
					return fmt.Errorf("failed to initialize database: %w", err)
				}
				defer database.Close()
				if err := syncGroups(database, groups); err != nil {
					return err
				}
			}

			if withMemberships {
				if err := syncMemberships(ctx, logger, database, groupService, groups); err != nil {
					return err
				}
			}

			logger.WithField("count", len(groups)).Info("List groups - END")
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceAccountFile, "service_account_file", "", "File name for the service account (mandatory)")
	cmd.Flags().StringVar(&identitySources, "identitysources", "", "Identity source to list (mandatory)")
	cmd.Flags().BoolVar(&withMemberships, "with_memberships", false, "Also list the memberships of every group")
	cmd.Flags().StringVar(&sqliteFile, "sqlite_file", "", "Store the listing in this SQLite snapshot")
	_ = cmd.MarkFlagRequired("service_account_file")
	_ = cmd.MarkFlagRequired("identitysources")
	return cmd
}

func syncGroups(database *sql.DB, groups []*cloudidentity.Group) error {
	rows := make([]model.Group, 0, len(groups))
	for _, group := range groups {
		rows = append(rows, model.FromCloudIdentityGroup(group))
	}
	if err := db.InsertGroups(database, rows); err != nil {
		return fmt.Errorf("failed to insert groups: %w", err)
	}
	return nil
}

// syncMemberships walks the groups one after the other. database may be nil,
// in which case memberships are only logged.
func syncMemberships(ctx context.Context, logger logrus.FieldLogger, database *sql.DB, groupService *gcp.GroupService, groups []*cloudidentity.Group) error {
	for _, group := range groups {
		memberships, err := groupService.ListMemberships(ctx, group.Name)
		if err != nil {
			return err
		}
		rows := make([]model.Membership, 0, len(memberships))
		for _, membership := range memberships {
			row := model.FromCloudIdentityMembership(group.Name, membership)
			logger.WithField("group", group.Name).Infof("Membership: %s Member: %s Type: %s", row.Name, row.MemberID, row.Type)
			rows = append(rows, row)
		}
		if database == nil {
			continue
		}
		if err := db.InsertMemberships(database, rows); err != nil {
			return fmt.Errorf("failed to insert memberships of %s: %w", group.Name, err)
		}
	}
	return nil
}

func newGroupsGetCmd(logger logrus.FieldLogger) *cobra.Command {
	var serviceAccountFile, groupID string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := newIdentityAPI(ctx, serviceAccountFile)
			if err != nil {
				return err
			}
			group, err := gcp.NewGroupService(api, "", logger).Get(ctx, groupID)
			if err != nil {
				return err
			}
			raw, err := group.MarshalJSON()
			if err != nil {
				return err
			}
			logger.WithField("group", group.Name).Infof("Group: %s", raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceAccountFile, "service_account_file", "", "File name for the service account (mandatory)")
	cmd.Flags().StringVar(&groupID, "group_id", "", "Group ID or groups/{id} resource name (mandatory)")
	_ = cmd.MarkFlagRequired("service_account_file")
	_ = cmd.MarkFlagRequired("group_id")
	return cmd
}

func newGroupsMembershipsCmd(logger logrus.FieldLogger) *cobra.Command {
	var serviceAccountFile, groupID string

	cmd := &cobra.Command{
		Use:   "memberships",
		Short: "List the memberships of one group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := newIdentityAPI(ctx, serviceAccountFile)
			if err != nil {
				return err
			}
			groupName := gcp.GroupName(groupID)
			memberships, err := gcp.NewGroupService(api, "", logger).ListMemberships(ctx, groupName)
			if err != nil {
				return err
			}
			for _, membership := range memberships {
				row := model.FromCloudIdentityMembership(groupName, membership)
				logger.WithField("group", groupName).Infof("Membership: %s Member: %s Type: %s", row.Name, row.MemberID, row.Type)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceAccountFile, "service_account_file", "", "File name for the service account (mandatory)")
	cmd.Flags().StringVar(&groupID, "group_id", "", "Group ID or groups/{id} resource name (mandatory)")
	_ = cmd.MarkFlagRequired("service_account_file")
	_ = cmd.MarkFlagRequired("group_id")
	return cmd
}
