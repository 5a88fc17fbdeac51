// Package sheet reads and writes the tabular files the ETL works with:
// CT-e workbooks (.xlsx, first sheet) and CSV exports (.csv), plus the
// delimited flat files produced for BI tools.
//
// Both readers produce the same Table: a header row and the data rows keyed
// by header name, with blank rows skipped and line numbers preserved so row
// errors point at the line a user sees in the spreadsheet.
package sheet
