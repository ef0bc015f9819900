package services

import "time"

// WeekOf возвращает номер недели и год по ISO-8601 для момента времени.
// Год берётся именно ISO-овский: 1 января может принадлежать 52-й или
// 53-й неделе предыдущего года, а 31 декабря — 1-й неделе следующего.
func WeekOf(t time.Time) (week, year int) {
	year, week = t.ISOWeek()
	return week, year
}

// weekOrCurrent возвращает переданную неделю, а при нулевых значениях —
// текущую неделю по часам now
func weekOrCurrent(week, year int, now time.Time) (int, int) {
	if week == 0 || year == 0 {
		return WeekOf(now)
	}
	return week, year
}
