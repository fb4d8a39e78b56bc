// Package compileinfoprint is imported for the side effect of printing the
// build provenance of a golimma binary to os.Stderr before main runs.
package compileinfoprint

import "github.com/carbocation/golimma/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
