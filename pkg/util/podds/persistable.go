package podds

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/richard-senior/podds/internal/logger"
	_ "modernc.org/sqlite"
)

// Persistable is a struct whose dbtype-tagged fields map to one table row
type Persistable interface {
	GetTableName() string
	GetPrimaryKey() map[string]any
}

// beforeSaver is implemented by rows that need stamping or checking first
type beforeSaver interface {
	BeforeSave() error
}

// executor is the part of *sql.DB and *sql.Tx the mapper needs
type executor interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Database is an open sqlite parameter store
type Database struct {
	path string
	db   *sql.DB
}

// OpenDatabase opens (creating if needed) the sqlite file at path and makes
// sure the model tables exist
func OpenDatabase(path string) (*Database, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required: %w", ErrInvalidInput)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer, and a transaction must see its own inserts
	conn.SetMaxOpenConns(1)

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err = conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d := &Database{path: path, db: conn}
	if err := d.createTables(); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("Database initialized successfully", path)
	return d, nil
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Path is the file the database was opened from
func (d *Database) Path() string {
	return d.path
}

func (d *Database) createTables() error {
	if err := d.CreateTable(&ModelRecord{}); err != nil {
		return fmt.Errorf("failed to create model table: %w", err)
	}
	if err := d.CreateTable(&Coefficient{}); err != nil {
		return fmt.Errorf("failed to create coefficient table: %w", err)
	}
	return nil
}

// CreateTable creates a table for the given persistable object using struct tags
func (d *Database) CreateTable(obj Persistable) error {
	tableName := obj.GetTableName()
	createSQL := generateCreateTableSQL(obj, tableName)
	logger.Debug("Creating table with SQL", createSQL)

	if _, err := d.db.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}
	for _, query := range generateIndexSQL(obj, tableName) {
		logger.Debug("Creating index with SQL", query)
		if _, err := d.db.Exec(query); err != nil {
			logger.Warn("Failed to create index", err)
		}
	}
	return nil
}

// persistedField is one struct field that maps to a column
type persistedField struct {
	index   int
	column  string
	dbtype  string
	primary bool
	tag     reflect.StructTag
}

// persistedFields walks the struct tags once for every mapper operation
func persistedFields(obj any) (reflect.Value, []persistedField) {
	v := reflect.ValueOf(obj)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()

	var fields []persistedField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("db") == "-" {
			continue
		}
		dbType := f.Tag.Get("dbtype")
		if dbType == "" {
			continue
		}
		column := f.Tag.Get("column")
		if column == "" {
			column = strings.ToLower(f.Name)
		}
		fields = append(fields, persistedField{
			index:   i,
			column:  column,
			dbtype:  dbType,
			primary: f.Tag.Get("primary") == "true",
			tag:     f.Tag,
		})
	}
	return v, fields
}

// generateCreateTableSQL generates CREATE TABLE SQL from struct tags
func generateCreateTableSQL(obj any, tableName string) string {
	_, fields := persistedFields(obj)

	var columns, primaryKeys, foreignKeys []string
	for _, f := range fields {
		columns = append(columns, f.column+" "+f.dbtype)
		if f.primary {
			primaryKeys = append(primaryKeys, f.column)
		}
		// format: "table.column"
		if ref := strings.Split(f.tag.Get("fk"), "."); len(ref) == 2 {
			onDelete := f.tag.Get("fk_delete")
			if onDelete == "" {
				onDelete = "RESTRICT"
			}
			foreignKeys = append(foreignKeys, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s) ON DELETE %s",
				f.column, ref[0], ref[1], onDelete))
		}
	}
	if len(primaryKeys) > 0 {
		columns = append(columns, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKeys, ", ")))
	}
	columns = append(columns, foreignKeys...)

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, strings.Join(columns, ", "))
}

// generateIndexSQL generates index creation SQL from struct tags
func generateIndexSQL(obj any, tableName string) []string {
	_, fields := persistedFields(obj)
	var out []string
	for _, f := range fields {
		if f.tag.Get("index") == "" {
			continue
		}
		out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)",
			tableName, f.column, tableName, f.column))
	}
	return out
}

// Save persists the object to the database (INSERT or UPDATE)
func (d *Database) Save(obj Persistable) error {
	return save(d.db, obj)
}

func save(ex executor, obj Persistable) error {
	if h, ok := obj.(beforeSaver); ok {
		if err := h.BeforeSave(); err != nil {
			return fmt.Errorf("before save hook failed: %w", err)
		}
	}

	exists, err := exists(ex, obj)
	if err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if exists {
		return update(ex, obj)
	}
	return insert(ex, obj)
}

func insert(ex executor, obj Persistable) error {
	tableName := obj.GetTableName()
	v, fields := persistedFields(obj)

	columns := make([]string, len(fields))
	placeholders := make([]string, len(fields))
	values := make([]any, len(fields))
	for i, f := range fields {
		columns[i] = f.column
		placeholders[i] = "?"
		values[i] = v.Field(f.index).Interface()
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	logger.Debug("Insert SQL", query)

	if _, err := ex.Exec(query, values...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", tableName, err)
	}
	return nil
}

func update(ex executor, obj Persistable) error {
	tableName := obj.GetTableName()
	v, fields := persistedFields(obj)

	var setPairs []string
	var values []any
	for _, f := range fields {
		if f.primary {
			continue
		}
		setPairs = append(setPairs, f.column+" = ?")
		values = append(values, v.Field(f.index).Interface())
	}
	if len(setPairs) == 0 {
		return nil
	}

	whereClause, whereValues := buildWhereClause(obj.GetPrimaryKey())
	values = append(values, whereValues...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", tableName, strings.Join(setPairs, ", "), whereClause)
	logger.Debug("Update SQL", query)

	if _, err := ex.Exec(query, values...); err != nil {
		return fmt.Errorf("failed to update %s: %w", tableName, err)
	}
	return nil
}

// Exists checks if the object exists in the database
func (d *Database) Exists(obj Persistable) (bool, error) {
	return exists(d.db, obj)
}

func exists(ex executor, obj Persistable) (bool, error) {
	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", tableName, whereClause)
	if err := ex.QueryRow(query, values...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check existence in %s: %w", tableName, err)
	}
	return count > 0, nil
}

// Delete removes the object from the database
func (d *Database) Delete(obj Persistable) error {
	tableName := obj.GetTableName()
	whereClause, values := buildWhereClause(obj.GetPrimaryKey())

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", tableName, whereClause)
	if _, err := d.db.Exec(query, values...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", tableName, err)
	}
	return nil
}

// FindByPrimaryKey fills obj from the row matching primaryKey
func (d *Database) FindByPrimaryKey(obj Persistable, primaryKey map[string]any) error {
	tableName := obj.GetTableName()
	columns, destinations := getSelectData(obj)
	whereClause, values := buildWhereClause(primaryKey)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(columns, ", "), tableName, whereClause)
	logger.Debug("FindByPrimaryKey SQL", query)

	err := d.db.QueryRow(query, values...).Scan(destinations...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no row in %s for %v: %w", tableName, primaryKey, ErrModelNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to scan row from %s: %w", tableName, err)
	}
	return nil
}

// FindWhere returns every row matching the WHERE clause as new objects of
// the same type as obj. An empty clause returns the whole table.
func (d *Database) FindWhere(obj Persistable, whereClause string, args ...any) ([]any, error) {
	tableName := obj.GetTableName()
	columns, _ := getSelectData(obj)

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), tableName)
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	logger.Debug("FindWhere SQL", query)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableName, err)
	}
	defer rows.Close()

	objType := reflect.TypeOf(obj)
	if objType.Kind() == reflect.Ptr {
		objType = objType.Elem()
	}

	var results []any
	for rows.Next() {
		newObj := reflect.New(objType).Interface()
		_, destinations := getSelectData(newObj)
		if err := rows.Scan(destinations...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", tableName, err)
		}
		results = append(results, newObj)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows from %s: %w", tableName, err)
	}
	return results, nil
}

// getSelectData extracts column names and scan destinations for SELECT
func getSelectData(obj any) ([]string, []any) {
	v, fields := persistedFields(obj)
	columns := make([]string, len(fields))
	destinations := make([]any, len(fields))
	for i, f := range fields {
		columns[i] = f.column
		destinations[i] = v.Field(f.index).Addr().Interface()
	}
	return columns, destinations
}

// BulkSave saves every object in one transaction
func (d *Database) BulkSave(objects []Persistable) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, obj := range objects {
		if err := save(tx, obj); err != nil {
			return fmt.Errorf("failed to save %s row: %w", obj.GetTableName(), err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// deleteWhere runs inside tx so a model and its coefficients change together
func deleteWhere(ex executor, tableName, whereClause string, args ...any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", tableName, whereClause)
	if _, err := ex.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", tableName, err)
	}
	return nil
}

// buildWhereClause builds a WHERE clause from a primary key map
func buildWhereClause(primaryKey map[string]any) (string, []any) {
	var conditions []string
	var values []any
	for column, value := range primaryKey {
		conditions = append(conditions, column+" = ?")
		values = append(values, value)
	}
	return strings.Join(conditions, " AND "), values
}
