package model

// Link is a directed edge from one resource to another.
// Links are created once per discovered reference and are not
// de-duplicated at write time.
type Link struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// Task is a durable unit of pending fetch work.
// A task is deleted once a worker has finished with it, whatever the outcome.
type Task struct {
	// ID is the store-assigned identifier.
	ID int64 `json:"id"`

	// ResourceID is the resource to fetch.
	ResourceID int64 `json:"resource_id"`

	// TerritoireID is the crawl workspace the task belongs to.
	TerritoireID int64 `json:"territoire_id"`

	// Depth is the distance from the territoire's roots.
	Depth int `json:"depth"`
}

// Annotation is a territoire-scoped judgment about a resource.
type Annotation struct {
	ResourceID   int64             `json:"resource_id"`
	TerritoireID int64             `json:"territoire_id"`
	Values       map[string]string `json:"values,omitempty"`

	// Approved is nil while no decision has been made.
	Approved *bool `json:"approved"`
}
