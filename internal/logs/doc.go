// Package logs reads the uploadflow log file for `uploadflow logs`.
//
// Last returns the trailing lines with bounded memory, and Follow polls for
// appended lines until its context is cancelled. Follow only reports complete
// lines and starts over when the file is truncated or rotated.
package logs
