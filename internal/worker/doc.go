// Package worker runs the durable get-expression task queue.
//
// A Pool claims tasks from the store on a fixed interval, never holding more
// than its maximum number of tasks in flight, and processes each task in
// its own goroutine. Every task races a deadline: if the fetch has not
// settled in time the resource is marked with the timeout error and the task
// is deleted; results arriving later are discarded. Either way the task is
// deleted exactly once.
//
// Several pools, in one process or on several machines, can share a store.
// The store guarantees that a task is claimed by only one of them.
package worker
