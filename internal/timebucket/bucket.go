// Package timebucket discretizes a departure timestamp into the temporal
// coordinates used by the aggregate index keys.
package timebucket

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the accepted timestamp form, read as naive local calendar time.
// Whether the training data was bucketed in UTC or a fixed offset is a
// data-layer concern; no conversion happens here.
const Layout = "2006-01-02 15:04:05"

var ErrBadTimestamp = errors.New("bad timestamp")

const (
	Weekday = "weekday"
	Weekend = "weekend"
)

// Bucket holds every temporal coordinate a key layout can draw from.
type Bucket struct {
	Season       int    // quarter of the year: 1=Mar-May, 2=Jun-Aug, 3=Sep-Nov, 4=Dec-Feb
	DayOfWeek    int    // Monday=0 .. Sunday=6
	Daytype      string // weekday|weekend
	AdjustedHour int    // hour rounded up when minute > 30
	StartHour    int
	EndHour      int
}

// hourRanges are the canonical traffic periods; every hour of the day falls
// in exactly one.
var hourRanges = [6][2]int{
	{0, 6},   // early morning
	{7, 10},  // morning peak
	{11, 13}, // noon off peak
	{14, 16}, // afternoon peak
	{17, 19}, // evening off peak
	{20, 23}, // late evening
}

func Parse(timestamp string) (Bucket, error) {
	t, err := time.ParseInLocation(Layout, timestamp, time.Local)
	if err != nil {
		return Bucket{}, fmt.Errorf("%w: %q", ErrBadTimestamp, timestamp)
	}

	var b Bucket

	month := int(t.Month())
	b.Season = ((month+9)%12)/3 + 1

	// time.Weekday has Sunday=0; the index was built with Monday=0.
	b.DayOfWeek = (int(t.Weekday()) + 6) % 7
	if b.DayOfWeek >= 5 {
		b.Daytype = Weekend
	} else {
		b.Daytype = Weekday
	}

	b.AdjustedHour = t.Hour()
	if t.Minute() > 30 {
		b.AdjustedHour = (b.AdjustedHour + 1) % 24
	}

	for _, r := range hourRanges {
		if b.AdjustedHour >= r[0] && b.AdjustedHour <= r[1] {
			b.StartHour, b.EndHour = r[0], r[1]
			break
		}
	}

	return b, nil
}
