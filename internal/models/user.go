package models

import "time"

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleFarmOwner UserRole = "farm_owner"
	RoleManager   UserRole = "manager"
	RoleWorker    UserRole = "worker"
)

// ReviewerRoles receive duplicate-record notifications for their farm.
var ReviewerRoles = []UserRole{RoleManager, RoleFarmOwner}

// User: an admin always has FarmID = nil; any other bound role points FarmID at an existing Farm.
type User struct {
	ID        uint  `gorm:"primaryKey"`
	FarmID    *uint `gorm:"index"`
	Farm      *Farm
	Name      string   `gorm:"size:100;not null"`
	Email     string   `gorm:"size:100;uniqueIndex;not null"`
	Role      UserRole `gorm:"size:20;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
