// Package main implements the uploadflow CLI.
//
// The run command drives the whole pipeline for one video in a local working
// directory, prompting on the terminal for the title, description, and final
// confirmation. The remaining commands inspect pipeline state, verify that
// the external tools are installed, manage the configuration file, and
// maintain the web daemon's session index.
package main
