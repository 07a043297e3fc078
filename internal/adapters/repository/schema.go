package repository

import (
	"fmt"
	"strings"

	"github.com/okian/fetalhealth/internal/domain/model"
)

const observationTable = "fetal_health"

// SQL statements. ql uses == for equality and id() for the insertion-order row id.
var (
	sqlCreateObservations = createObservations()
	sqlInsertObservation  = insertObservation()
	sqlSelectObservations = selectObservations()
	sqlCountObservations  = "SELECT count(*) FROM " + observationTable + ";"

	sqlCreateUsers = `CREATE TABLE IF NOT EXISTS users (
	user_name string NOT NULL,
	password_hash string NOT NULL,
	active bool
);`
	sqlCreateUsersIndex = "CREATE UNIQUE INDEX IF NOT EXISTS users_user_name ON users (user_name);"
	sqlDeleteUser       = "DELETE FROM users WHERE user_name == $1;"
	sqlInsertUser       = "INSERT INTO users (user_name, password_hash, active) VALUES ($1, $2, true);"
	sqlSelectUser       = "SELECT password_hash, active FROM users WHERE user_name == $1;"
)

func createObservations() string {
	cols := make([]string, 0, model.NumFeatures+1)
	for _, c := range model.Columns() {
		cols = append(cols, c+" float64")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", observationTable, strings.Join(cols, ", "))
}

func insertObservation() string {
	cols := model.Columns()
	params := make([]string, len(cols))
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		observationTable, strings.Join(cols, ", "), strings.Join(params, ", "))
}

func selectObservations() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id();", strings.Join(model.Columns(), ", "), observationTable)
}
