// Package events decouples writers from the work their writes trigger.
//
// The article service emits a TaskRequestEvent after a commit that changed an
// article's text; handlers registered with the emitter turn it into an
// enrichment task (queued or inline). The service never imports the task
// machinery.
package events
