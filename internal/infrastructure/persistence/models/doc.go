// Package models contains the GORM persistence models of the CT-e star
// schema. They are kept apart from the domain entities so the domain layer
// stays free of ORM tags; each model converts to and from its entity.
//
// - base.go: shared id and timestamp columns
// - dimension.go: one row of a dimension table (filiais, transportadoras, ...)
// - shipment.go: the fato_cte fact table
// - run.go: etl_runs history
package models
