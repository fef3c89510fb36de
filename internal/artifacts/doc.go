// Package artifacts names the files a pipeline run produces and derives the
// pipeline state from their presence in a working directory.
//
// A stage is complete exactly when its output file exists. Scan reads the
// directory once and returns a State value; callers ask that value what has
// been done and what comes next instead of probing the filesystem repeatedly.
package artifacts
