// Package labels provides consistent tagging for temporary and produced
// cloud resources.
//
// Every resource a workflow creates carries the run identifier and the
// resource kind, so anything left behind by a failed teardown can be found
// by selector and removed by hand. Keys use the amiforge.io prefix.
package labels
