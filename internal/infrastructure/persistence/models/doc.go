// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: Base persistence models (BaseModel, OrgAggregateModel)
// - record.go: entity records and their relation links
// - membership.go: organization memberships
// - activity.go: activity log entries
// - import_history.go: import audit trail
package models
