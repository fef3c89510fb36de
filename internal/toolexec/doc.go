// Package toolexec runs the external programs the pipeline delegates to.
//
// Every invocation names its working directory explicitly through Command.Dir;
// the process working directory is never changed, so concurrent web requests
// can drive different session directories at the same time. A non-zero exit
// surfaces as *ExitError wrapped with services.ErrExternalTool so callers can
// both classify the failure and recover the child's exit status.
package toolexec
