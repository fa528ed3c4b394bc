// Package approval implements the per-session gate that holds side-effecting
// tool actions until the user approves or denies them.
//
// # Protocol
//
// A tool that needs to run an external command calls RequestApproval with a
// human-readable command line and the action to run. The gate:
//
//  1. Sends {"type":"approvalRequest","content":<command>} on the session channel
//  2. Parks the caller until Deliver is called with the user's decision
//  3. Approved: sends approvalResponse "approved", runs the action once, returns its output
//  4. Denied: sends approvalResponse "denied", returns "Command not approved"
//
// The wire protocol carries no request id, so a session may have at most one
// outstanding request. A second RequestApproval while one is pending fails
// with ErrConcurrentApproval.
//
// # Closing
//
// Close fails any parked caller with ErrSessionClosed without running its
// action. Requests made after Close fail the same way.
//
// # Timeout
//
// With a non-zero timeout, an unanswered request is resolved as denied:
// the client gets approvalResponse "denied" and the caller gets
// "Command not approved".
package approval
