// Package errors provides classified errors for sitebuilder.
//
// Every error that crosses a package boundary carries a category and a
// severity so callers can decide between aborting the build, failing a
// single document, or degrading with a warning. The rule of thumb: errors
// keyed to a single document or file recover locally and are reported;
// errors that would leave registry-, graph- or tree-level state
// inconsistent abort the whole build.
package errors
