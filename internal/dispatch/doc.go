// Package dispatch fans one input payload out to every configured command.
//
// Each call to Dispatch allocates a new generation, cancels whatever earlier
// generations are still running and starts one runner per command inside a
// task group scoped to that generation. Results are streamed on the Run's
// Updates channel as each command finishes, so fast commands can be shown
// before slow ones.
//
// Key features:
//   - Strictly increasing generation ids, never reused
//   - One concurrent runner per command, no throttling
//   - Supersession: a new dispatch cancels all outstanding runs first
//   - Scoped task groups: a generation's runners are joined together and
//     its Updates channel is closed once all of them resolved
//   - Fire-and-forget: Dispatch never waits on a command
//
// Cancellation is advisory for the OS process (the runner escalates from
// SIGTERM to SIGKILL) but authoritative for visibility: consumers drop any
// result whose generation is older than the latest one they accepted.
//
// Error handling:
//   - Per-command failures come back as results, never as errors
//   - One failing command never prevents others in the same generation
//   - No retries: a failed command is reported as-is
package dispatch
