/**
 * @description
 * Contract and Template database models.
 * Map to the 'contracts' and 'templates' tables in PostgreSQL.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package models

import (
	"strings"
	"time"
)

// Contract tracks a deployed terms contract. The row exists from the moment the
// creation transaction is broadcast; it does not imply on-chain confirmation.
type Contract struct {
	ID     string `gorm:"primaryKey" json:"id"` // "{chainId}::{contractAddress}"
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Owner  string `gorm:"index" json:"owner"` // Account id

	// Enriched after deployment confirmation; empty until then.
	Description string `json:"description"`
	Image       string `json:"image"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Contract to `contracts`
func (Contract) TableName() string {
	return "contracts"
}

// ContractID builds the composite key for a contract. The address part is
// lower-cased so lookups and inserts agree on casing.
func ContractID(chainID, address string) string {
	return chainID + "::" + strings.ToLower(address)
}

// ChainID returns the chain portion of the composite key.
func (c *Contract) ChainID() string {
	chainID, _, _ := strings.Cut(c.ID, "::")
	return chainID
}

// Address returns the contract address portion of the composite key.
func (c *Contract) Address() string {
	_, address, _ := strings.Cut(c.ID, "::")
	return address
}

// Template is a terms template owned by an account. The core reads but never
// mutates these rows.
type Template struct {
	ID    string `gorm:"primaryKey" json:"id"`
	Owner string `gorm:"index" json:"owner"` // Account id
	Name  string `json:"name"`
	CID   string `json:"cid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name used by Template to `templates`
func (Template) TableName() string {
	return "templates"
}
