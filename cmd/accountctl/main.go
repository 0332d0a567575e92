// Command accountctl runs administrative tasks against the account store.
package main

import (
	"os"

	"github.com/dmitrijs2005/gophaccounts/internal/accountctl"
	"github.com/dmitrijs2005/gophaccounts/internal/buildinfo"
)

func main() {
	cmd := accountctl.NewRootCmd()
	cmd.Version = buildinfo.Version

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
