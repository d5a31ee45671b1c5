// Package cmdrun runs external programs and centralizes how their outcome is
// classified.
//
// Every invocation yields stdout, stderr and the exit code. Each invocation
// class (conversion, probe, extraction, notification) carries its own
// deadline, after which the process is killed. Non-zero exits, launch failures
// and deadlines surface as services.ErrToolExecution so the workflow treats
// them as transient; callers that recognise a permanent failure in the output
// reclassify it themselves.
package cmdrun
