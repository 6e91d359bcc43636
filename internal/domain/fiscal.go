package domain

import "time"

// Fiscal calendar: fiscal month 1 is July, fiscal month 12 is June.
// FY2026 spans 1 Jul 2025 – 30 Jun 2026.

// FiscalMonthOf returns the fiscal month (1-12) containing t.
func FiscalMonthOf(t time.Time) int {
	fm := int(t.Month()) - 6
	if fm <= 0 {
		fm += 12
	}
	return fm
}

// FiscalYearOf returns the fiscal year containing t.
func FiscalYearOf(t time.Time) int {
	if t.Month() >= time.July {
		return t.Year() + 1
	}
	return t.Year()
}

// FiscalYearStart returns 1 July of the year before fiscalYear.
func FiscalYearStart(fiscalYear int) time.Time {
	return time.Date(fiscalYear-1, time.July, 1, 0, 0, 0, 0, time.UTC)
}

// FiscalYearEnd returns 30 June of fiscalYear.
func FiscalYearEnd(fiscalYear int) time.Time {
	return time.Date(fiscalYear, time.June, 30, 0, 0, 0, 0, time.UTC)
}

// CalendarFor maps a fiscal month (1-12) within fiscalYear to its calendar
// month and year: fiscal months 1-6 are Jul-Dec of fiscalYear-1, fiscal
// months 7-12 are Jan-Jun of fiscalYear.
func CalendarFor(fiscalYear, fiscalMonth int) (calendarMonth, calendarYear int) {
	if fiscalMonth <= 6 {
		return fiscalMonth + 6, fiscalYear - 1
	}
	return fiscalMonth - 6, fiscalYear
}
