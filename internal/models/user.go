/**
 * @description
 * User and Account database models.
 * Map to the 'users' and 'accounts' tables in PostgreSQL.
 *
 * @dependencies
 * - gorm.io/gorm
 *
 * @notes
 * - A User's id is its lower-cased wallet address; it is also the id of the
 *   account created alongside it. Accounts are a separate table so ownership
 *   can grow to many-to-many later without a data migration.
 */

package models

import (
	"time"
)

// User represents an authenticated wallet. Created on the first authenticated
// request from a new address, never deleted.
type User struct {
	ID       string   `gorm:"primaryKey" json:"id"` // lower-cased wallet address
	Accounts []string `gorm:"serializer:json" json:"accounts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by User to `users`
func (User) TableName() string {
	return "users"
}

// Account is the authorization unit contracts and templates are owned by.
type Account struct {
	ID string `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Account to `accounts`
func (Account) TableName() string {
	return "accounts"
}
