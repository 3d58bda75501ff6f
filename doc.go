// Package bookkeeper creates and self-upgrades the bookkeeping tables of a
// migration runner: the migrations log table and its single-row lock table
// (SQLite/PostgreSQL/MySQL), converging any earlier layout to the current one.
package bookkeeper
