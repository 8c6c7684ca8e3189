// Command restful manages go-restful projects: it starts projects, runs the
// server with the admin resources, applies migrations and manages users.
package main

import "github.com/asaidimu/go-restful/cli"

func main() {
	cli.Execute()
}
