package podds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureRow struct {
	Season string  `column:"season" dbtype:"TEXT NOT NULL" primary:"true"`
	Home   string  `column:"home" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Away   string  `column:"away" dbtype:"TEXT NOT NULL" primary:"true"`
	Rate   float64 `column:"rate" dbtype:"REAL"`
	Note   string
}

func (f *fixtureRow) GetTableName() string { return "fixture" }

func (f *fixtureRow) GetPrimaryKey() map[string]any {
	return map[string]any{"season": f.Season, "home": f.Home, "away": f.Away}
}

func TestGenerateCreateTableSQL(t *testing.T) {
	got := generateCreateTableSQL(&Coefficient{}, "coefficient")
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS coefficient (model TEXT NOT NULL, feature TEXT NOT NULL, value REAL NOT NULL, "+
		"PRIMARY KEY (model, feature), FOREIGN KEY (model) REFERENCES model(name) ON DELETE CASCADE)", got)

	assert.Equal(t, []string{"CREATE INDEX IF NOT EXISTS idx_fixture_home ON fixture(home)"},
		generateIndexSQL(&fixtureRow{}, "fixture"))
}

func TestSaveUpdatesExistingRow(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateTable(&fixtureRow{}))

	row := &fixtureRow{Season: "2425", Home: "Leeds", Away: "Hull", Rate: 1.4, Note: "not stored"}
	require.NoError(t, db.Save(row))
	row.Rate = 1.9
	require.NoError(t, db.Save(row))

	found := &fixtureRow{}
	require.NoError(t, db.FindByPrimaryKey(found, row.GetPrimaryKey()))
	assert.Equal(t, 1.9, found.Rate)
	assert.Empty(t, found.Note)

	ok, err := db.Exists(row)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.Delete(row))
	ok, err = db.Exists(row)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, db.FindByPrimaryKey(found, row.GetPrimaryKey()), ErrModelNotFound)
}

func TestBulkSaveAndFindWhere(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateTable(&fixtureRow{}))

	require.NoError(t, db.BulkSave([]Persistable{
		&fixtureRow{Season: "2425", Home: "Leeds", Away: "Hull", Rate: 1.4},
		&fixtureRow{Season: "2425", Home: "Hull", Away: "Leeds", Rate: 0.8},
		&fixtureRow{Season: "2324", Home: "Leeds", Away: "Hull", Rate: 1.1},
	}))

	rows, err := db.FindWhere(&fixtureRow{}, "season = ? ORDER BY rate", "2425")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Hull", rows[0].(*fixtureRow).Home)
	assert.Equal(t, 1.4, rows[1].(*fixtureRow).Rate)

	all, err := db.FindWhere(&fixtureRow{}, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestBulkSaveRollsBack(t *testing.T) {
	db := openTestDB(t)

	// the second record fails its hook so neither is written
	err := db.BulkSave([]Persistable{
		&ModelRecord{Name: "good", Kind: ModelKindXG},
		&ModelRecord{Name: "bad", Kind: "linear"},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	models, err := db.ListModels()
	require.NoError(t, err)
	assert.Empty(t, models)
}
