// Package flagx holds helpers for sharing os.Args between several
// independent flag sets (config file lookup, server flags).
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args that belongs to allowedFlags,
// keeping each flag's value when it is passed as a separate argument.
//
// Both "-name" and "--name" spellings match an allowed "-name", since the
// standard flag package accepts either. Supported forms:
//
//	-c conf.json
//	--config=conf.json
//
// The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[canonical(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if name, _, ok := strings.Cut(arg, "="); ok {
			if _, ok := allowed[canonical(name)]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[canonical(arg)]; !ok {
			continue
		}
		filtered = append(filtered, arg)

		// a following token that is not itself a flag is the value
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

func canonical(name string) string {
	return "-" + strings.TrimLeft(name, "-")
}

// ConfigPath returns the configuration file passed via -c or -config, or an
// empty string when neither is present. When both are given the last wins.
func ConfigPath() string {
	var path string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return path
}
