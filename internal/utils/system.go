package utils

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	user, err := user.Current()
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// GetHostname returns the system hostname.
func GetHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return hostname, nil
}

// LocalUserAgent describes the local CLI for access log entries, e.g.
// "syc-cli/1 (linux; laptop)".
func LocalUserAgent() string {
	host, err := GetHostname()
	if err != nil {
		// Fallback to username if hostname is unavailable.
		host, err = GetUsername()
		if err != nil {
			host = "unknown"
		}
	}
	return fmt.Sprintf("syc-cli/1 (%s; %s)", runtime.GOOS, host)
}
