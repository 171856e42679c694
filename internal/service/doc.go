// Package service contains the task lifecycle use cases. It orchestrates
// the stores defined in internal/store to fulfil application features.
//
// Key components:
//
// 1. TaskService:
//   - Creates, updates and deletes tasks and changes their memberships
//   - Writes the audit trail for every mutation it performs
//   - Emits task events after a change has been committed
//
// 2. Propagator:
//   - Rolls a subtask's status up through its ancestors inside the caller's transaction
//
// 3. Deleter:
//   - Removes a task and its whole subtree bottom-up, logging each removed
//     subtask to the task being deleted
//
// 4. NotificationService and AssignmentNotifier:
//   - Serve a user's notification inbox
//   - Turn assignee.added events into ASSIGNED notifications
//
// Multi-step mutations run inside store.Transactor.WithinTx, so a failure at
// any step rolls back every write of that call. Services depend only on the
// store interfaces, never on a specific backend.
package service
