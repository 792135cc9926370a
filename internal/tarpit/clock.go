package tarpit

import "time"

// NowMS returns the current time as milliseconds since the epoch, the unit
// every deadline and counter in this package uses.
func NowMS() int64 { return time.Now().UnixMilli() }
