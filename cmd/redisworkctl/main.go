// redisworkctl manages rediswork indexes and runs ad-hoc queries against them.
//
// Entity types come from a YAML schema file (see internal/schemafile):
//
//	redisworkctl --schema schema.yaml index bootstrap --yes
//	redisworkctl --schema schema.yaml query --type Person --where "Name LIKE 'Em%'" --sort Age --desc
//	redisworkctl --schema schema.yaml get --type Order ada 2
//	redisworkctl --schema schema.yaml export --type Person > person.redis
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
