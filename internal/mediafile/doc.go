// Package mediafile decides which files a batch run touches and where their
// outputs go.
//
// Filter maps a filename to an accept/reject decision plus the input and
// output extensions. Allocator reserves a non-colliding output path next to
// the input by creating it exclusively, marking suffixed names as temporary
// so the batch driver can rename them over the original after a successful
// encode.
package mediafile
