// Package crawler defines the data model shared by the first-link traversal
// engine: article references, sealed paths, walk outcomes, crawl jobs, and the
// collaborator interfaces (content source, persistence sink, size monitor)
// that the walker and controller depend on.
package crawler
