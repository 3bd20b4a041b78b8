package domain

import "time"

// AuditLog records an administrative change to the ledger or user table.
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	ActorID   string                 `db:"actor_id" json:"actorId"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	TargetID  string                 `db:"target_id" json:"targetId"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"userAgent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"createdAt"`
}

const (
	AuditCategoryAuth        = "auth"
	AuditCategoryTransaction = "transaction"
	AuditCategoryUser        = "user"
	AuditCategoryReport      = "report"
)

const (
	AuditActionLogin = "login"

	AuditActionTransactionCreate = "transaction_create"
	AuditActionTransactionUpdate = "transaction_update"
	AuditActionTransactionDelete = "transaction_delete"

	AuditActionUserUpdate = "user_update"

	AuditActionReportExport = "report_export"
)

// ChangeAction names what happened to a transaction in a ChangeEvent.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
)

// ChangeEvent is published after a successful ledger mutation.
type ChangeEvent struct {
	Type          string       `json:"type"`
	Action        ChangeAction `json:"action"`
	TransactionID string       `json:"transactionId"`
	UserID        string       `json:"userId"`
	At            time.Time    `json:"at"`
}

const ChangeEventType = "ledger.changed"
