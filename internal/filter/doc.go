// Package filter defines the media-filter contract: the operation set every
// derivative-producing filter implements, the registry that holds the closed
// set of variants, and the error taxonomy shared by all of them.
//
// A filter turns one source bitstream into one derivative bitstream. The
// Transform call is synchronous, consumes and closes the source exactly once,
// performs at most one external process invocation, and either returns a
// complete derivative or an error, never partial output.
package filter
