// Package cli implements the sshwrap command-line interface.
//
// Each Cobra command resolves a host and hands the work to internal/client.
// The shared steps live in SetupWorkflow:
//
//  1. Load and validate .sshwrap.yaml (or fall back to defaults)
//  2. Pick the host: --host, the default, the only host, or an interactive picker
//  3. Resolve it to a descriptor, wiring password and passphrase sources
//  4. Get a client from the process-wide session registry and bring the
//     master connection up
//
// # Command Structure
//
//	sshwrap exec <command>        - Run and stream output, exiting with its status
//	sshwrap output <command>      - Run and print captured output lines
//	sshwrap ls [path]             - List a remote directory
//	sshwrap expect <command>      - Answer an interactive command's prompts
//	sshwrap watch <command>       - Poll until output matches --until
//	sshwrap send <src>... <dst>   - rsync local files up
//	sshwrap recv <src>... <dst>   - rsync remote files down
//	sshwrap disconnect            - Close the master connection
//	sshwrap check                 - Verify config, connection and rsync
//	sshwrap hosts [add|default|remove] - Manage hosts
//
// A remote non-zero status is returned as errors.ExitError so Execute can
// exit with the same code without printing anything further.
package cli
