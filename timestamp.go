package satsave

import "time"

// Timestamp is a save modification time, counted in seconds since the backup
// library epoch of January 1, 1980 UTC. This is the unit stored in the save
// header on the medium.
type Timestamp uint32

var epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Time converts the timestamp to a time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return epoch.Add(time.Duration(ts) * time.Second)
}

// TimestampFromTime converts t to a Timestamp, truncating to whole seconds.
// Times before the 1980 epoch are clamped to zero.
func TimestampFromTime(t time.Time) Timestamp {
	seconds := t.Unix() - epoch.Unix()
	if seconds < 0 {
		return 0
	}
	return Timestamp(seconds)
}

// TimestampNow returns the current time as a Timestamp.
func TimestampNow() Timestamp {
	return TimestampFromTime(time.Now())
}
