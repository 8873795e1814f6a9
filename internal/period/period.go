// Package period maps wall-clock time to the daily, weekly and monthly
// period identifiers used by the on-chain program. All identifiers are
// computed in UTC+8.
package period

import (
	"strconv"
	"time"
)

const (
	// WeekEpoch is 2024-01-01 00:00:00 UTC+8, a Monday.
	WeekEpoch    int64 = 1704038400
	weekDuration int64 = 7 * 24 * 60 * 60
)

var zone = time.FixedZone("UTC+8", 8*60*60)

type Periods struct {
	Daily   string `json:"daily"`
	Weekly  string `json:"weekly"`
	Monthly string `json:"monthly"`
}

func Daily(t time.Time) string {
	return t.In(zone).Format("2006-01-02")
}

func Monthly(t time.Time) string {
	return t.In(zone).Format("2006-01")
}

func Weekly(t time.Time) string {
	elapsed := t.Unix() - WeekEpoch
	week := elapsed / weekDuration
	if elapsed < 0 && elapsed%weekDuration != 0 {
		week--
	}
	return "W" + strconv.FormatInt(week, 10)
}

func At(t time.Time) Periods {
	return Periods{Daily: Daily(t), Weekly: Weekly(t), Monthly: Monthly(t)}
}

// Provider yields the current periods. The game uses the daily identifier as
// the session period.
type Provider interface {
	Current() Periods
}

type ClockProvider struct {
	Now func() time.Time
}

func (p ClockProvider) Current() Periods {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return At(now())
}

// Fixed always reports the same periods.
type Fixed Periods

func (f Fixed) Current() Periods { return Periods(f) }
