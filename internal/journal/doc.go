// Package journal records the changes made to one in-memory value into a
// store stream.
//
// A Recorder owns its root. Every mutation runs inside an observation
// session; the resulting change is rendered to the JSON wire form,
// stamped with the next logical seq and appended to the stream. Replaying
// the stream from its base reproduces the encoded root at any seq.
//
// Single writer:
// Recorder.Record serializes callers with a mutex. Recorder.Run is the
// queue-driven alternative: producers Submit mutations from any goroutine
// and one goroutine applies them in FIFO order.
//
// Logical clock:
// Records are ordered by seq from a Sequencer, never by wall time. A
// recorder reopened on an existing stream resumes at the stream's last
// seq.
package journal
