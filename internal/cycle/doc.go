// Package cycle holds a user's day-by-day cycle log and the next-period
// prediction derived from it.
//
// A Store maps calendar dates to DayRecords. Toggling a date to "period day"
// moves the prediction anchor to that date; the predicted next period is the
// anchor plus Length days. Unmarking a date leaves the anchor where it
// was, so the most recently marked date always wins, even when it has since
// been unmarked.
//
// The package does no I/O and is not safe for concurrent use; callers that
// share a Store between goroutines must serialise access.
package cycle
