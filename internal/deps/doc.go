// Package deps checks that the external binaries reencode shells out to are
// installed.
package deps
