// Package model defines the core data structures shared by every stage of a
// phone number search: candidates, probe outcomes, profile records, the
// per-search session aggregate and the error taxonomy.
//
// Values produced by one stage and consumed by the next (ProbeOutcome,
// ProfileRecord) are plain value types. Stages hand them forward and never
// modify them after construction.
package model
