// Package pipeline executes the stages that turn a raw video into a published
// upload.
//
// Runner.Run takes one stage and a Job describing the working directory. It
// scans the directory, returns Skipped without touching any external tool when
// the stage's output already exists, and otherwise runs the stage and verifies
// that the output appeared. The interactive stages (title selection,
// description editing, confirmation) are driven by the CLI and web packages;
// this package only persists their results through WriteTitle and
// WriteDescription.
package pipeline
