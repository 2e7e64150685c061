/*
Package db is the gateway to the embedded SQLite store.

The store is a single file, db.sqlite, inside the cache directory. The
Gateway keeps no open handle: every call opens a connection with a busy
timeout, does its work, and closes. Nothing is shared between jobs except
the file itself.

# Dataset Tables

Load turns a localized CSV into a table. The header row names the columns
and their SQL types, one name_TYPE pair per cell:

	id_INTEGER,name_TEXT,price_REAL
	1,widget,2.50

becomes

	CREATE TABLE "dataset_7" ("id" INTEGER, "name" TEXT, "price" REAL)

The name ends at the first underscore; the rest is the type. A table that
already exists is left alone, so loading the same file twice is a no-op.
All rows load in one transaction, and a bad row leaves no table behind.

Identifiers are always quoted. Cell values are bound as parameters and
never interpolated.
*/
package db
