package browse

import "errors"

// SchedulerMismatch is returned when the blocking browser accessor is
// invoked on a launcher that a cooperative caller is already driving.
// The blocking and cooperative paths are mutually exclusive: queueing a
// blocking caller behind suspended waiters would stall it indefinitely.
var SchedulerMismatch = errors.New(
	"cannot acquire a blocking browser handle while a cooperative launch is in flight, use the context-aware accessor instead",
)

// RenderTimeout marks a single render attempt whose navigation exceeded
// its deadline. The retry loop absorbs it; everything else propagates.
var RenderTimeout = errors.New("navigation deadline exceeded")

// MaxRetriesExceeded is returned once the render retry budget is spent
// without obtaining any content.
var MaxRetriesExceeded = errors.New(
	"unable to render the page, try increasing the render timeout",
)

// NoLivePage is returned by Refresh when the response holds no kept page
// handle to re-capture content from.
var NoLivePage = errors.New("no live page handle, render with KeepPage first")
