// Package domain contains the core business entities of the task tracker:
// tasks arranged in a parent/child forest, the append-only audit log kept
// for each task, user notifications, and the recurrence rules used to spawn
// new task instances.
//
// Types in this package carry no persistence or transport concerns. The
// parent/child relation is stored only as a ParentID on the child; child
// lists are always computed by the store on read.
package domain
