package sync

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/sshwrap/internal/errors"
)

// isOldArgsError reports whether the local rsync rejected --old-args, which
// means the version probe and the binary actually run disagree.
func isOldArgsError(output string) bool {
	return strings.Contains(output, "--old-args") &&
		(strings.Contains(output, "unknown option") || strings.Contains(output, "unrecognized option"))
}

// handleRsyncError wraps rsync exit errors with helpful messages. Session
// failures that are not plain exit codes, like a rejected login, are returned
// as they are.
func handleRsyncError(err error, hostName string, output string) error {
	if isOldArgsError(output) {
		return errors.WrapWithCode(err, errors.ErrSync,
			"rsync doesn't understand --old-args",
			"Set rsync_path to the same rsync that 'rsync --version' reports, or upgrade it to 3.2.4+.")
	}

	// rsync exit codes have specific meanings
	// See: https://download.samba.org/pub/rsync/rsync.1
	exitCode, ok := errors.ExitCodeOf(err)
	if !ok {
		return err
	}

	var msg, suggestion string
	switch exitCode {
	case 1:
		msg = "rsync syntax or usage error"
		suggestion = "Check the extra rsync options for invalid flags"
	case 2:
		msg = "rsync protocol incompatibility"
		suggestion = "Ensure rsync versions are compatible on local and remote"
	case 3:
		msg = "File selection error"
		suggestion = "Check that source paths exist and are readable"
	case 5:
		msg = "Error starting client-server protocol"
		suggestion = "Check SSH connection and remote rsync installation"
	case 10:
		msg = "Error in socket I/O"
		suggestion = "Check network connectivity to the remote host"
	case 11:
		msg = "Error in file I/O"
		suggestion = "Check disk space and file permissions on both local and remote"
	case 12:
		msg = "Error in rsync protocol data stream"
		suggestion = "This may indicate a corrupted transfer, try again"
	case 23:
		msg = "Partial transfer due to error"
		suggestion = "Some files may have permission issues, check the output above"
	case 24:
		msg = "Partial transfer due to vanished source files"
		suggestion = "Files were modified during the transfer, this is usually harmless"
	case 30:
		msg = "Timeout in data send/receive"
		suggestion = "Check network stability or raise --timeout"
	case 35:
		msg = "Timeout waiting for daemon connection"
		suggestion = "Check that the remote rsync starts promptly"
	case 255:
		msg = fmt.Sprintf("SSH connection to '%s' failed", hostName)
		suggestion = "Check that the host is reachable: sshwrap check --host " + hostName
	default:
		msg = fmt.Sprintf("rsync exited with code %d", exitCode)
		suggestion = "Check the output above for specific error details"
	}

	return errors.WrapWithCode(err, errors.ErrSync, msg, suggestion)
}
