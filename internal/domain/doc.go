// Package domain models the warehouse landing data and the rules used to
// normalize it.
//
// # Data Sources
//
// Four upstream sources feed the landing dataset:
//
//	blob     bike catalogue CSV behind a SAS URL (comma separated, header row)
//	rates    CNB yearly exchange-rate text files (pipe separated, one file per year)
//	weather  daily weather CSV for a date range (comma separated, header row)
//	trips    public bikeshare tables, copied through GCS and curated with SQL
//
// # Date Conventions
//
// Configured date bounds use the Czech "dd.mm.yyyy" form, e.g. "01.01.2022".
// CNB files use the same form in their Datum column. The weather API and the
// warehouse use ISO "yyyy-mm-dd". A [DateRange] is inclusive on both ends by
// calendar day; the year fan-out of the rates source and the post-parse window
// filter share that interpretation.
//
// CNB yearly files repeat their header line whenever the published currency
// list changes mid-year:
//
//	Datum|1 AUD|1 BGN|...
//	03.01.2022|15,883|12,630|...
//	Datum|1 AUD|1 BRL|...
//
// Pattern checking on Datum drops such lines when re-headering is off.
//
// # Coercion Policies
//
// Each destination column is described by a [ColumnRule]. The failure policy is
// per column and intentionally asymmetric:
//
//	identifier integers   unparseable -> 0        (OnErrorZero)
//	free text             always a string
//	decimal-comma floats  unparseable -> error     (OnErrorFail)
//	dates                 unparseable -> row drop  (OnErrorDrop)
//	timestamps            unparseable -> NULL      (OnErrorNull)
//
// A zero identifier is a sentinel, not a real bike. Downstream joins on
// bike_id should treat 0 as unknown.
//
// # Error Budget
//
// [ErrorBudget] rounds half to even: 25 rows at 10% allow 2 rejected records,
// 35 rows allow 4.
package domain
