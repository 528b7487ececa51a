// Package task manages background job queuing, processing, and lifecycle.
// Article enrichment attempts run here as persisted tasks so that they do
// not block HTTP request handling and survive application restarts.
package task
