package apiclient

import (
	"fmt"
	"runtime"
	"strings"
)

// LibraryVersion is reported in the user agent.
const LibraryVersion = "1.0.0"

const (
	userAgentTemplate = "erede-go/%s (SDK; Go/%s; Store/%s) %s %s %s"
	httpEngine        = "Go-http-client/1.1"
	tlsLibrary        = "crypto/tls"
)

// UserAgent returns the User-Agent value sent with every call.
func (d *Dispatcher) UserAgent() string {
	sysname, release, machine := uname()

	ua := fmt.Sprintf(userAgentTemplate,
		LibraryVersion,
		strings.TrimPrefix(runtime.Version(), "go"),
		d.store.Filiation(),
		sysname,
		release,
		machine,
	)

	if d.platform != "" && d.platformVersion != "" {
		ua += fmt.Sprintf(" %s/%s", d.platform, d.platformVersion)
	}

	ua += fmt.Sprintf(" %s %s", httpEngine, tlsLibrary)

	return strings.Join(strings.Fields(ua), " ")
}
