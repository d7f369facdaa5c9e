package gcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/cloudidentity/v1"
	"google.golang.org/api/option"
)

// PageSize is the number of items requested per list call.
const PageSize = 50

// IdentityAPI is the subset of the Cloud Identity API used by GroupService.
type IdentityAPI interface {
	GetGroup(ctx context.Context, name string) (*cloudidentity.Group, error)
	ListGroups(ctx context.Context, parent string, pageSize int64, pageToken string) (*cloudidentity.ListGroupsResponse, error)
	ListMemberships(ctx context.Context, parent string, pageSize int64, pageToken string) (*cloudidentity.ListMembershipsResponse, error)
}

// CloudIdentityAPI implements IdentityAPI on top of the generated client.
type CloudIdentityAPI struct {
	groups      *cloudidentity.GroupsService
	memberships *cloudidentity.GroupsMembershipsService
}

func NewIdentityAPI(ctx context.Context, opts ...option.ClientOption) (*CloudIdentityAPI, error) {
	service, err := cloudidentity.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloudidentity.NewService: %w", err)
	}
	return &CloudIdentityAPI{
		groups:      cloudidentity.NewGroupsService(service),
		memberships: cloudidentity.NewGroupsMembershipsService(service),
	}, nil
}

func (c *CloudIdentityAPI) GetGroup(ctx context.Context, name string) (*cloudidentity.Group, error) {
	return c.groups.Get(name).Context(ctx).Do()
}

func (c *CloudIdentityAPI) ListGroups(ctx context.Context, parent string, pageSize int64, pageToken string) (*cloudidentity.ListGroupsResponse, error) {
	req := c.groups.List().Parent(parent).PageSize(pageSize)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}
	return req.Context(ctx).Do()
}

func (c *CloudIdentityAPI) ListMemberships(ctx context.Context, parent string, pageSize int64, pageToken string) (*cloudidentity.ListMembershipsResponse, error) {
	req := c.memberships.List(parent).PageSize(pageSize)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}
	return req.Context(ctx).Do()
}

// GroupService reads the groups of one identity source.
type GroupService struct {
	api            IdentityAPI
	identitySource string
	log            logrus.FieldLogger
}

func NewGroupService(api IdentityAPI, identitySource string, log logrus.FieldLogger) *GroupService {
	return &GroupService{api: api, identitySource: identitySource, log: log}
}

func (s *GroupService) IdentitySourceName() string {
	return "identitysources/" + s.identitySource
}

// GroupName returns the resource name of a group. Full resource names are
// returned unchanged.
func GroupName(groupID string) string {
	if strings.HasPrefix(groupID, "groups/") {
		return groupID
	}
	return "groups/" + groupID
}

func (s *GroupService) Get(ctx context.Context, groupID string) (*cloudidentity.Group, error) {
	name := GroupName(groupID)
	group, err := s.api.GetGroup(ctx, name)
	if err != nil {
		return nil, newError(KindAPI, "get "+name, err)
	}
	return group, nil
}

// List returns every group of the identity source, pages concatenated in
// fetch order.
func (s *GroupService) List(ctx context.Context) ([]*cloudidentity.Group, error) {
	parent := s.IdentitySourceName()
	groups, err := collectPages(ctx, s.log.WithField("parent", parent), func(ctx context.Context, token string) ([]*cloudidentity.Group, string, error) {
		resp, err := s.api.ListGroups(ctx, parent, PageSize, token)
		if err != nil {
			return nil, "", err
		}
		return resp.Groups, resp.NextPageToken, nil
	})
	if err != nil {
		return nil, newError(KindAPI, "list groups of "+parent, err)
	}
	return groups, nil
}

// ListMemberships returns every membership of a group.
func (s *GroupService) ListMemberships(ctx context.Context, groupID string) ([]*cloudidentity.Membership, error) {
	parent := GroupName(groupID)
	memberships, err := collectPages(ctx, s.log.WithField("parent", parent), func(ctx context.Context, token string) ([]*cloudidentity.Membership, string, error) {
		resp, err := s.api.ListMemberships(ctx, parent, PageSize, token)
		if err != nil {
			return nil, "", err
		}
		return resp.Memberships, resp.NextPageToken, nil
	})
	if err != nil {
		return nil, newError(KindAPI, "list memberships of "+parent, err)
	}
	return memberships, nil
}

// collectPages calls fetch until it returns an empty next page token. The
// token is forwarded verbatim. On error nothing collected so far is returned.
func collectPages[T any](ctx context.Context, log logrus.FieldLogger, fetch func(ctx context.Context, token string) ([]T, string, error)) ([]T, error) {
	var output []T
	token := ""
	for page := 1; ; page++ {
		items, next, err := fetch(ctx, token)
		if err != nil {
			return nil, err
		}
		output = append(output, items...)
		log.WithField("page", page).Debugf("Fetched %d items", len(items))
		if next == "" {
			return output, nil
		}
		token = next
	}
}
