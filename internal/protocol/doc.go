// Package protocol defines the messages exchanged with the snippetd daemon.
//
// Every message is an [Envelope]: a JSON object carrying a command name and
// a command-specific payload, written on a single line. A client opens a
// connection, writes one request envelope, and reads one response envelope
// whose command is [CmdOK] or [CmdError].
//
// Example usage:
//
//	data, err := protocol.Encode(protocol.CmdRun, &protocol.RunRequest{
//	    FriendlyName: "python",
//	    SetupDir:     setupDir,
//	    InputDir:     inputDir,
//	    OutputDir:    outputDir,
//	})
//	if err != nil {
//	    return err
//	}
//	conn.Write(append(data, '\n'))
package protocol
