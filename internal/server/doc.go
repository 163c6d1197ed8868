// Package server implements the snippetd daemon.
//
// The daemon listens on a Unix domain socket for JSON-encoded commands.
// Each connection carries a single request-response exchange: the client
// sends a newline-delimited [protocol.Envelope], the server dispatches the
// command, and writes the result back before closing the connection.
//
// Run commands are delegated to an [Engine], normally an [engine.Helper],
// which serializes renders so that concurrent clients never race on the
// same environment. Closing the connection while a run is in progress
// cancels it.
//
// Example usage:
//
//	srv, err := server.New(server.Config{Backend: backend.Kind()}, helper)
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
//	srv.Wait()
package server
