// Package workflow drives a complete pipeline run from the command line.
//
// A Driver checks that the external tools are installed, runs the automated
// stages in the chosen working directory, then walks the operator through
// title selection, description editing, and the confirmation gate before
// publishing. Re-running a driver in the same directory skips every automated
// stage whose output already exists, so an interrupted run resumes where it
// stopped.
package workflow
