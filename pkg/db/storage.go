package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dkletran/cloudsearch-admin/pkg/model"
)

// InsertGroups stores groups and their labels in a single transaction.
// Re-inserting a group replaces the previous row and its whole label set.
func InsertGroups(db *sql.DB, groups []model.Group) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	groupStmt, err := tx.Prepare("INSERT OR REPLACE INTO identity_group (name, display_name, description, parent, create_time) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer groupStmt.Close()

	clearStmt, err := tx.Prepare("DELETE FROM group_label WHERE group_name = ?")
	if err != nil {
		return err
	}
	defer clearStmt.Close()

	labelStmt, err := tx.Prepare("INSERT OR REPLACE INTO group_label (group_name, label, value) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer labelStmt.Close()

	for _, g := range groups {
		if _, err := groupStmt.Exec(g.Name, g.DisplayName, g.Description, g.Parent, g.CreateTime); err != nil {
			return fmt.Errorf("error inserting group %s: %w", g.Name, err)
		}
		if _, err := clearStmt.Exec(g.Name); err != nil {
			return fmt.Errorf("error clearing labels of group %s: %w", g.Name, err)
		}
		for _, l := range g.Labels {
			if _, err := labelStmt.Exec(l.GroupName, l.Label, l.Value); err != nil {
				return fmt.Errorf("error inserting label %s of group %s: %w", l.Label, g.Name, err)
			}
		}
	}
	return tx.Commit()
}

func InsertMemberships(db *sql.DB, memberships []model.Membership) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO membership (name, group_name, member_id, type, roles) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range memberships {
		if _, err := stmt.Exec(m.Name, m.GroupName, m.MemberID, m.Type, strings.Join(m.Roles, ",")); err != nil {
			return fmt.Errorf("error inserting membership %s: %w", m.Name, err)
		}
	}
	return tx.Commit()
}
