package domain

import "time"

// CountBucket is one group of an aggregate report.
type CountBucket struct {
	Key   string
	Label string
	Count int
}

// TrendPoint is the number of tickets created on one day.
type TrendPoint struct {
	Day   time.Time
	Count int
}
