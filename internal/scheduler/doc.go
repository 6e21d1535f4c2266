// Package scheduler implements the coordinator side of distributed Strassen
// multiplication. It owns the worker registry, the table of active tasks, the
// per-parent dependency tracker and the client records of root submissions,
// all guarded by a single mutex. Network and storage calls are made only
// after that mutex is released.
package scheduler
