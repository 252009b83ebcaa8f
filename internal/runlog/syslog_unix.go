//go:build !windows && !plan9

package runlog

import (
	"io"
	"log/syslog"
)

func openSyslog() (io.WriteCloser, error) {
	return syslog.New(syslog.LOG_ERR|syslog.LOG_DAEMON, "recarchive")
}
