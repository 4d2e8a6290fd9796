package models

import (
	"gorm.io/gorm"
)

const (
	RoleLearner = "USER"
	RoleAdmin   = "ADMIN"
)

// User is the learner identity as seen by the learning engine. Accounts are
// provisioned by the auth service; only the fields printed on certificates
// and used for notifications live here.
type User struct {
	gorm.Model
	Name      string `gorm:"default:''"`
	Email     string `gorm:"uniqueIndex;size:191;not null"`
	Role      string `gorm:"default:'USER'"` // USER, ADMIN
	IsBlocked bool   `gorm:"default:false"`
	IsDeleted bool   `gorm:"default:false"`
}
