// Package events carries task change notifications between the task service
// and reactions that must run after a transaction commits, such as creating
// an ASSIGNED notification for a new assignee.
package events
