// cmd/xd-parent
package main

import (
	"os"
)

// xd-parent hosts the root context of a platform node.
//
//	xd-parent describe --profile cloud --set XD_JMX_ENABLED=false
//	xd-parent serve --config xd.yml --addr :9393
//
// describe prints the beans the context would publish for the current
// environment. serve composes the context and exposes its routing facade,
// health endpoint and metrics over HTTP until interrupted.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
