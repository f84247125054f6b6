package table

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendChecksDeclaredTypes(t *testing.T) {
	tbl := New(
		Column{Name: "strain_name_raw", Type: TypeString, Origin: "unify"},
		Column{Name: "thc_min_raw", Type: TypeNumber, Origin: "unify"},
	)
	require.NoError(t, tbl.Append(Row{"strain_name_raw": Str("Gelato"), "thc_min_raw": Num(20), "stray": Str("x")}))
	require.Error(t, tbl.Append(Row{"thc_min_raw": Str("20%")}))
	require.Equal(t, 1, tbl.Len())
	_, ok := tbl.Rows()[0]["stray"]
	require.False(t, ok)
}

func TestEvolveKeepsLineage(t *testing.T) {
	base := New(
		Column{Name: "a_raw", Type: TypeString, Origin: "unify"},
		Column{Name: "b_clean", Type: TypeNumber, Origin: "02_unit_normalize"},
	)
	next := base.Evolve("10c_minmax_split", Changes{
		Adds:    []Column{{Name: "b_min_clean", Type: TypeNumber}},
		Removes: []string{"b_clean"},
		Retypes: map[string]Type{"a_raw": TypeNumber},
	})
	require.Equal(t, []string{"a_raw", "b_min_clean"}, next.ColumnNames())
	c, _ := next.Column("a_raw")
	require.Equal(t, TypeNumber, c.Type)
	require.Equal(t, "unify", c.Origin)
	c, _ = next.Column("b_min_clean")
	require.Equal(t, "10c_minmax_split", c.Origin)

	again := next.Evolve("10c_minmax_split", Changes{Adds: []Column{{Name: "b_min_clean", Type: TypeNumber}}})
	require.Equal(t, next.Columns(), again.Columns())
}

func TestCSVRoundTripWithSchema(t *testing.T) {
	tbl := New(
		Column{Name: "name", Type: TypeString, Origin: "unify"},
		Column{Name: "days", Type: TypeNumber, Origin: "02"},
		Column{Name: "auto", Type: TypeBool, Origin: "09"},
	)
	require.NoError(t, tbl.Append(Row{"name": Str("Night, Night"), "days": Num(56), "auto": Bool(true)}))
	require.NoError(t, tbl.Append(Row{"name": Str("Gelato \"33\"")}))

	path := filepath.Join(t.TempDir(), "05_genetics.csv")
	require.NoError(t, tbl.Save(path))

	back, err := Load(path, "raw")
	require.NoError(t, err)
	require.Equal(t, tbl.Columns(), back.Columns())
	require.Equal(t, tbl.Rows(), back.Rows())

	var a, b bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&a))
	require.NoError(t, back.WriteCSV(&b))
	require.Equal(t, a.String(), b.String())
}

func TestReadCSVWithoutSchema(t *testing.T) {
	in := "\ufeffvendor,thc\nattitude,20%\nseedsman,\n"
	tbl, err := ReadCSV(bytes.NewBufferString(in), nil, "raw")
	require.NoError(t, err)
	require.Equal(t, []string{"vendor", "thc"}, tbl.ColumnNames())
	require.Equal(t, "20%", tbl.Rows()[0].Text("thc"))
	require.True(t, tbl.Rows()[1].Get("thc").IsNull())
	c, _ := tbl.Column("thc")
	require.Equal(t, "raw", c.Origin)
}
