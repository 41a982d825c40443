package models

import (
	"sort"
	"time"
)

// Group is one or more students submitting together for an assignment.
type Group struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID uint      `gorm:"not null;uniqueIndex:idx_group_assignment_name" json:"assignment_id"`
	Name         string    `gorm:"size:255;not null;uniqueIndex:idx_group_assignment_name" json:"name"`
	Members      []Student `gorm:"many2many:group_members" json:"members"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Logins returns the member logins in sorted order.
func (g Group) Logins() []string {
	logins := make([]string, 0, len(g.Members))
	for _, member := range g.Members {
		logins = append(logins, member.Login)
	}
	sort.Strings(logins)
	return logins
}

// SortGroupsByName orders groups by name, the ordering used within an assignment.
func SortGroupsByName(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
}
