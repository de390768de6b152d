// Command coredb is a minimal smoke-test harness for the storage and
// transaction core: it opens a database, runs one transaction that writes
// and commits a value, and one that writes and rolls back, then reports
// what ended up on disk. It is not a SQL engine or a client driver.
package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"coredb"
	"coredb/file"
)

func main() {
	dir := flag.String("dir", "./coredb-data", "database directory")
	flag.Parse()

	log := logrus.WithField("component", "cmd/coredb")

	db, err := coredb.Open(*dir)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	block := file.NewBlockID("greeting", 0)

	tx1, err := db.NewTx()
	if err != nil {
		log.WithError(err).Fatal("start transaction")
	}
	size, err := tx1.Size(block.Filename)
	if err != nil {
		log.WithError(err).Fatal("read file size")
	}
	if size == 0 {
		if _, err := tx1.Append(block.Filename); err != nil {
			log.WithError(err).Fatal("append block")
		}
	}
	if err := tx1.Pin(block); err != nil {
		log.WithError(err).Fatal("pin block")
	}
	if err := tx1.SetString(block, 0, "hello, coredb", true); err != nil {
		log.WithError(err).Fatal("write value")
	}
	if err := tx1.Commit(); err != nil {
		log.WithError(err).Fatal("commit transaction")
	}

	tx2, err := db.NewTx()
	if err != nil {
		log.WithError(err).Fatal("start transaction")
	}
	if err := tx2.Pin(block); err != nil {
		log.WithError(err).Fatal("pin block")
	}
	val, err := tx2.GetString(block, 0)
	if err != nil {
		log.WithError(err).Fatal("read value")
	}
	log.WithField("value", val).Info("read back committed value")

	if err := tx2.SetString(block, 0, "this will be rolled back", true); err != nil {
		log.WithError(err).Fatal("write value")
	}
	if err := tx2.Rollback(); err != nil {
		log.WithError(err).Fatal("rollback transaction")
	}

	tx3, err := db.NewTx()
	if err != nil {
		log.WithError(err).Fatal("start transaction")
	}
	if err := tx3.Pin(block); err != nil {
		log.WithError(err).Fatal("pin block")
	}
	val, err = tx3.GetString(block, 0)
	if err != nil {
		log.WithError(err).Fatal("read value")
	}
	log.WithField("value", val).Info("value after rollback")
	if err := tx3.Commit(); err != nil {
		log.WithError(err).Fatal("commit transaction")
	}
}
