// Package exporter writes loaded datasets to disk or a stream.
//
// CSVWriter writes one CSV file per dataset, with an optional UTF-8 byte
// order mark so spreadsheet programs detect the encoding. WriteWorkbook puts
// several datasets into one xlsx workbook, one sheet each, with numbers and
// timestamps stored as typed cells.
//
// Missing values (NaN floats, zero timestamps) are written as empty cells.
// Coercion sentinels in integer columns are written as-is.
package exporter
