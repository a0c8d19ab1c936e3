// Package events defines the events the dispatch manager emits on the event bus.
//
// Available event types:
//   - RunEvent: a dispatch run completed
//   - WarningEvent: the orchestrator reported a warning
//   - SetpointEvent: a set-point was published, or failed to publish
package events
