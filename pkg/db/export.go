package db

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ListTablesAndDump dumps each table in the SQLite database to a separate CSV
// file named after the table. exportDir is recreated from scratch.
func ListTablesAndDump(log logrus.FieldLogger, dbPath string, exportDir string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name;`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_ = os.RemoveAll(exportDir)

	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	for _, table := range tables {
		outputPath := filepath.Join(exportDir, table+".csv")
		log.WithField("table", table).Infof("Dumping table to %s", outputPath)
		if err := dumpTableToCSV(db, table, outputPath); err != nil {
			return fmt.Errorf("dump %s: %w", table, err)
		}
	}

	return nil
}

// dumpTableToCSV queries a table and writes its content to a CSV file.
func dumpTableToCSV(db *sql.DB, tableName, outputPath string) error {
	// Table names cannot be bound as parameters; they come from sqlite_master.
	rows, err := db.Query(`SELECT * FROM "` + tableName + `"`)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(cols); err != nil {
		return err
	}

	values := make([]interface{}, len(cols))
	valuePtrs := make([]interface{}, len(cols))
	for i := range cols {
		valuePtrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}

		record := make([]string, len(cols))
		for i, col := range values {
			switch v := col.(type) {
			case nil:
			case []byte:
				record[i] = string(v)
			default:
				record[i] = fmt.Sprintf("%v", v)
			}
		}

		if err := writer.Write(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}
