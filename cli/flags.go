package cli

import "github.com/spf13/pflag"

// addParseFlags registers the shared input-parsing flags used by every
// command that reads a workflow file.
func addParseFlags(fs *pflag.FlagSet) {
	fs.Bool("repair", false, "attempt JSON repair when strict parsing fails")
	fs.Bool("js", false, "accept a JavaScript object literal as input")
}
