package model

import (
	"sort"

	"google.golang.org/api/cloudidentity/v1"
)

type Group struct {
	Name        string
	DisplayName string
	Description string
	Parent      string
	CreateTime  string
	Labels      []GroupLabel
}

type GroupLabel struct {
	GroupName string
	Label     string
	Value     string
}

type Membership struct {
	Name      string
	GroupName string
	MemberID  string
	Type      string
	Roles     []string
}

// FromCloudIdentityGroup flattens an API group into a snapshot row. Labels are
// sorted by key so repeated runs write rows in the same order.
func FromCloudIdentityGroup(g *cloudidentity.Group) Group {
	group := Group{
		Name:        g.Name,
		DisplayName: g.DisplayName,
		Description: g.Description,
		Parent:      g.Parent,
		CreateTime:  g.CreateTime,
	}
	for label, value := range g.Labels {
		group.Labels = append(group.Labels, GroupLabel{GroupName: g.Name, Label: label, Value: value})
	}
	sort.Slice(group.Labels, func(i, j int) bool { return group.Labels[i].Label < group.Labels[j].Label })
	return group
}

func FromCloudIdentityMembership(groupName string, m *cloudidentity.Membership) Membership {
	membership := Membership{
		Name:      m.Name,
		GroupName: groupName,
		Type:      m.Type,
	}
	if m.PreferredMemberKey != nil {
		membership.MemberID = m.PreferredMemberKey.Id
	}
	for _, role := range m.Roles {
		if role != nil {
			membership.Roles = append(membership.Roles, role.Name)
		}
	}
	return membership
}
