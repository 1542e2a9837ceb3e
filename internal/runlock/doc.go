// Package runlock prevents two batch runs from working on the same directory
// tree at once.
package runlock
